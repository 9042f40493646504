package audio

import (
	"context"
	"testing"
	"time"
)

func TestValueReplaysLatestToNewSubscribers(t *testing.T) {
	v := NewValue(func(a, b int) bool { return a == b })
	v.Set(1)
	v.Set(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case got := <-v.Subscribe(ctx):
		if got != 2 {
			t.Fatalf("expected replay of 2, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a replayed element")
	}
}

func TestValueSuppressesDuplicates(t *testing.T) {
	v := NewValue(func(a, b int) bool { return a == b })
	if !v.Set(1) {
		t.Fatalf("expected first element to publish")
	}
	if v.Set(1) {
		t.Fatalf("expected duplicate element to be suppressed")
	}
	v.Publish(1)
	if got, ok := v.Get(); !ok || got != 1 {
		t.Fatalf("expected 1, got %d (%v)", got, ok)
	}
}

func TestValueConflatesForSlowSubscribers(t *testing.T) {
	v := NewValue[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Subscribe(ctx)
	for i := 1; i <= 10; i++ {
		v.Set(i)
	}

	got := <-ch
	if got != 10 {
		t.Fatalf("expected only the newest element, got %d", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra element %d", extra)
	default:
	}
}

func TestValueClosesOnCancel(t *testing.T) {
	v := NewValue[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription was not closed")
	}

	// Publishing after the subscriber left must not block or panic.
	v.Set(3)
}
