package disconnect

import (
	"errors"
	"testing"

	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
)

func TestMapEndedStates(t *testing.T) {
	cases := []struct {
		state domain.CallState
		level platform.Level
		want  domain.DisconnectCause
	}{
		{domain.CallState{Kind: domain.CallStateAnsweredOnAnotherDevice}, 25, domain.DisconnectCauseAnsweredElsewhere},
		{domain.CallState{Kind: domain.CallStateAnsweredOnAnotherDevice}, 34, domain.DisconnectCauseAnsweredElsewhere},
		{domain.CallState{Kind: domain.CallStateAnsweredOnAnotherDevice}, 24, domain.DisconnectCauseOther},
		{domain.CallState{Kind: domain.CallStateLineBusy}, 30, domain.DisconnectCauseBusy},
		{domain.CallState{Kind: domain.CallStateCurrentUserInAnotherCall}, 30, domain.DisconnectCauseBusy},
		{domain.CallState{Kind: domain.CallStateDeclined}, 30, domain.DisconnectCauseRemote},
		{domain.CallState{Kind: domain.CallStateHungUp, Reason: "left"}, 30, domain.DisconnectCauseRemote},
		{domain.CallState{Kind: domain.CallStateError}, 30, domain.DisconnectCauseError},
		{domain.CallState{Kind: domain.CallStateTimeout}, 30, domain.DisconnectCauseOther},
		{domain.CallState{Kind: domain.CallStateKicked, Reason: "admin"}, 30, domain.DisconnectCauseOther},
		{domain.CallState{Kind: domain.CallStateEnded}, 30, domain.DisconnectCauseOther},
	}

	for _, tc := range cases {
		got, err := Map(tc.state, tc.level)
		if err != nil {
			t.Fatalf("map %s at level %d: unexpected error: %v", tc.state, tc.level, err)
		}
		if got != tc.want {
			t.Errorf("map %s at level %d: got %q, want %q", tc.state, tc.level, got, tc.want)
		}
	}
}

func TestMapRejectsNonTerminalStates(t *testing.T) {
	for _, kind := range []domain.CallStateKind{
		domain.CallStateConnecting,
		domain.CallStateConnected,
		domain.CallStateReconnecting,
		domain.CallStateDisconnected,
	} {
		_, err := Map(domain.CallState{Kind: kind}, 34)
		if !errors.Is(err, ErrNotTerminal) {
			t.Errorf("expected ErrNotTerminal for %s, got %v", kind, err)
		}
	}
}

func TestMapCoversEveryEndedKind(t *testing.T) {
	kinds := []domain.CallStateKind{
		domain.CallStateEnded,
		domain.CallStateDeclined,
		domain.CallStateHungUp,
		domain.CallStateLineBusy,
		domain.CallStateCurrentUserInAnotherCall,
		domain.CallStateAnsweredOnAnotherDevice,
		domain.CallStateKicked,
		domain.CallStateTimeout,
		domain.CallStateError,
	}
	for _, kind := range kinds {
		state := domain.CallState{Kind: kind}
		if !state.IsEnded() {
			t.Fatalf("expected %s to be an ended state", kind)
		}
		cause, err := Map(state, 21)
		if err != nil || cause == domain.DisconnectCauseUnknown {
			t.Errorf("expected a cause for %s, got %q (%v)", kind, cause, err)
		}
	}
}
