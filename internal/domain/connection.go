package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus enumerates lifecycle stages of a telephony connection.
type ConnectionStatus string

const (
	ConnectionStatusInitializing ConnectionStatus = "initializing"
	ConnectionStatusActive       ConnectionStatus = "active"
	// ConnectionStatusHolding is only ever reported by the host platform; a hold request ends the call.
	ConnectionStatusHolding      ConnectionStatus = "holding"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// DisconnectCause is the reason attached to a disconnected connection.
type DisconnectCause string

const (
	DisconnectCauseUnknown           DisconnectCause = ""
	DisconnectCauseLocal             DisconnectCause = "local"
	DisconnectCauseRemote            DisconnectCause = "remote"
	DisconnectCauseRejected          DisconnectCause = "rejected"
	DisconnectCauseBusy              DisconnectCause = "busy"
	DisconnectCauseAnsweredElsewhere DisconnectCause = "answered_elsewhere"
	DisconnectCauseError             DisconnectCause = "error"
	DisconnectCauseOther             DisconnectCause = "other"
)

// DisconnectCauses lists every cause the mapper and gesture handlers can produce.
var DisconnectCauses = []DisconnectCause{
	DisconnectCauseLocal,
	DisconnectCauseRemote,
	DisconnectCauseRejected,
	DisconnectCauseBusy,
	DisconnectCauseAnsweredElsewhere,
	DisconnectCauseError,
	DisconnectCauseOther,
}

// ConnectionState is the lifecycle state owned by a connection.
// Cause is set only when Status is ConnectionStatusDisconnected.
type ConnectionState struct {
	Status ConnectionStatus `json:"status"`
	Cause  DisconnectCause  `json:"cause,omitempty"`
}

// IsTerminal reports whether the connection reached its final state.
func (s ConnectionState) IsTerminal() bool {
	return s.Status == ConnectionStatusDisconnected
}

// Direction of the call a connection represents.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// ConnectionEventType classifies lifecycle events emitted for a connection.
type ConnectionEventType string

const (
	ConnectionEventCreated      ConnectionEventType = "created"
	ConnectionEventStateChanged ConnectionEventType = "state_changed"
	ConnectionEventIncomingUI   ConnectionEventType = "show_incoming_ui"
	ConnectionEventSilenced     ConnectionEventType = "silenced"
)

// ConnectionEvent is a persisted record of a connection lifecycle change.
type ConnectionEvent struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	AccountID    string
	Type         ConnectionEventType
	Status       ConnectionStatus
	Cause        DisconnectCause
	Address      string
	OccurredAt   time.Time
}

// DisconnectStats aggregates disconnect causes for an account.
type DisconnectStats struct {
	AccountID string                    `db:"account_id"`
	Counts    map[DisconnectCause]int64 `db:"-"`
	Total     int64                     `db:"-"`
	UpdatedAt time.Time                 `db:"updated_at"`
}
