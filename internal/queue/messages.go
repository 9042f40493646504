package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/call-connection/internal/domain"
)

// ConnectionEventMessage describes a lifecycle change of a connection.
type ConnectionEventMessage struct {
	EventID      uuid.UUID                  `json:"event_id"`
	ConnectionID uuid.UUID                  `json:"connection_id"`
	AccountID    string                     `json:"account_id"`
	Type         domain.ConnectionEventType `json:"type"`
	Status       domain.ConnectionStatus    `json:"status"`
	Cause        domain.DisconnectCause     `json:"cause,omitempty"`
	Address      string                     `json:"address"`
	Direction    domain.Direction           `json:"direction,omitempty"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}

// NewConnectionEventMessage stamps a message with a fresh id and the current time.
func NewConnectionEventMessage(connectionID uuid.UUID, accountID string, eventType domain.ConnectionEventType, state domain.ConnectionState) ConnectionEventMessage {
	return ConnectionEventMessage{
		EventID:      uuid.New(),
		ConnectionID: connectionID,
		AccountID:    accountID,
		Type:         eventType,
		Status:       state.Status,
		Cause:        state.Cause,
		OccurredAt:   time.Now().UTC(),
	}
}

// ToDomain converts the message into a persisted event.
func (m ConnectionEventMessage) ToDomain() domain.ConnectionEvent {
	return domain.ConnectionEvent{
		ID:           m.EventID,
		ConnectionID: m.ConnectionID,
		AccountID:    m.AccountID,
		Type:         m.Type,
		Status:       m.Status,
		Cause:        m.Cause,
		Address:      m.Address,
		OccurredAt:   m.OccurredAt,
	}
}
