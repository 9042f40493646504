package keepalive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type staticAccounts []string

func (s staticAccounts) AccountIDs() []string { return s }

type recordingRefresher struct {
	mu      sync.Mutex
	calls   map[string]int
	failFor string
}

func (r *recordingRefresher) Refresh(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[accountID]++
	if accountID == r.failFor {
		return errors.New("redis down")
	}
	return nil
}

func (r *recordingRefresher) count(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[accountID]
}

func TestTickRefreshesEveryAccount(t *testing.T) {
	refresher := &recordingRefresher{failFor: "b"}
	runner := New(staticAccounts{"a", "b", "c"}, refresher, time.Second, nil)

	if failed := runner.tick(context.Background()); failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
	for _, id := range []string{"a", "b", "c"} {
		if got := refresher.count(id); got != 1 {
			t.Fatalf("expected one refresh for %s, got %d", id, got)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	refresher := &recordingRefresher{}
	runner := New(staticAccounts{"a"}, refresher, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for refresher.count("a") < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("runner did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
}
