// Package disconnect translates terminal call states into disconnect causes.
package disconnect

import (
	"errors"
	"fmt"

	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
)

// ErrNotTerminal is returned when a non-ended call state is mapped.
var ErrNotTerminal = errors.New("call state is not terminal")

// Map returns the disconnect cause for an ended call state on the given platform level.
func Map(state domain.CallState, level platform.Level) (domain.DisconnectCause, error) {
	switch state.Kind {
	case domain.CallStateAnsweredOnAnotherDevice:
		if level.SupportsAnsweredElsewhere() {
			return domain.DisconnectCauseAnsweredElsewhere, nil
		}
		return domain.DisconnectCauseOther, nil
	case domain.CallStateLineBusy, domain.CallStateCurrentUserInAnotherCall:
		return domain.DisconnectCauseBusy, nil
	case domain.CallStateDeclined, domain.CallStateHungUp:
		return domain.DisconnectCauseRemote, nil
	case domain.CallStateError:
		return domain.DisconnectCauseError, nil
	case domain.CallStateTimeout, domain.CallStateKicked, domain.CallStateEnded:
		return domain.DisconnectCauseOther, nil
	default:
		return domain.DisconnectCauseUnknown, fmt.Errorf("disconnect: map %s: %w", state, ErrNotTerminal)
	}
}
