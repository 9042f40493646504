package domain

import "fmt"

// CallStateKind enumerates the states reported by the call engine.
type CallStateKind string

const (
	CallStateConnecting   CallStateKind = "connecting"
	CallStateConnected    CallStateKind = "connected"
	CallStateReconnecting CallStateKind = "reconnecting"
	// CallStateDisconnected is the idle state before or between attempts. It is not an end state.
	CallStateDisconnected CallStateKind = "disconnected"

	CallStateEnded                    CallStateKind = "ended"
	CallStateDeclined                 CallStateKind = "declined"
	CallStateHungUp                   CallStateKind = "hung_up"
	CallStateLineBusy                 CallStateKind = "line_busy"
	CallStateCurrentUserInAnotherCall CallStateKind = "current_user_in_another_call"
	CallStateAnsweredOnAnotherDevice  CallStateKind = "answered_on_another_device"
	CallStateKicked                   CallStateKind = "kicked"
	CallStateTimeout                  CallStateKind = "timeout"
	CallStateError                    CallStateKind = "error"
)

// CallState is a single observation of the call engine state.
// Reason is only meaningful for HungUp and Kicked.
type CallState struct {
	Kind   CallStateKind `json:"kind"`
	Reason string        `json:"reason,omitempty"`
}

// IsEnded reports whether the state belongs to the ended family.
func (s CallState) IsEnded() bool {
	switch s.Kind {
	case CallStateEnded,
		CallStateDeclined,
		CallStateHungUp,
		CallStateLineBusy,
		CallStateCurrentUserInAnotherCall,
		CallStateAnsweredOnAnotherDevice,
		CallStateKicked,
		CallStateTimeout,
		CallStateError:
		return true
	default:
		return false
	}
}

func (s CallState) String() string {
	if s.Reason == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
}

// ParseCallStateKind validates a wire representation of a call state kind.
func ParseCallStateKind(raw string) (CallStateKind, bool) {
	kind := CallStateKind(raw)
	switch kind {
	case CallStateConnecting, CallStateConnected, CallStateReconnecting, CallStateDisconnected:
		return kind, true
	}
	if (CallState{Kind: kind}).IsEnded() {
		return kind, true
	}
	return "", false
}
