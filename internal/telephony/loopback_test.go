package telephony

import (
	"context"
	"testing"

	"github.com/acme/call-connection/internal/domain"
)

func TestLoopbackForgetsDestroyedHandles(t *testing.T) {
	l := NewLoopback(nil)

	first, err := l.Register(context.Background(), Request{Address: "+15550100", Direction: domain.DirectionIncoming})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := l.Register(context.Background(), Request{Address: "+15550101", Direction: domain.DirectionOutgoing})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := l.Live(); got != 2 {
		t.Fatalf("expected 2 live handles, got %d", got)
	}

	first.SetDisconnected(domain.DisconnectCauseLocal)
	first.Destroy()
	first.Destroy()
	if got := l.Live(); got != 1 {
		t.Fatalf("expected destroy to be counted once, got %d live", got)
	}

	second.Destroy()
	if got := l.Live(); got != 0 {
		t.Fatalf("expected no live handles, got %d", got)
	}
}

func TestLoopbackHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLoopback(nil)
	if _, err := l.Register(ctx, Request{Address: "+15550100"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if got := l.Live(); got != 0 {
		t.Fatalf("expected no live handles, got %d", got)
	}
}
