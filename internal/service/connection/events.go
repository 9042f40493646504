package connection

import (
	"sync"

	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/connection"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/queue"
)

// eventListener turns connection callbacks into queued lifecycle events.
// It never blocks: events go to a buffered channel drained by the publisher.
type eventListener struct {
	service   *Service
	accountID string
	address   string
	direction domain.Direction

	// terminal is closed after the disconnect event has been queued.
	terminal     chan struct{}
	terminalOnce sync.Once

	// Callbacks are delivered one at a time, so last needs no lock.
	last    domain.ConnectionState
	hasLast bool
}

func newEventListener(s *Service, accountID, address string, direction domain.Direction) *eventListener {
	return &eventListener{
		service:   s,
		accountID: accountID,
		address:   address,
		direction: direction,
		terminal:  make(chan struct{}),
	}
}

// OnConnectionStateChange publishes the connection's latest state. A state
// already published is skipped, which happens when a later transition lands
// before an earlier notification is delivered.
func (l *eventListener) OnConnectionStateChange(c *connection.Connection) {
	state := c.State()
	if l.hasLast && state == l.last {
		return
	}
	l.last, l.hasLast = state, true

	l.enqueue(c, domain.ConnectionEventStateChanged, state)
	if state.IsTerminal() {
		l.terminalOnce.Do(func() { close(l.terminal) })
	}
}

func (l *eventListener) OnShowIncomingCallUI(c *connection.Connection) {
	l.enqueue(c, domain.ConnectionEventIncomingUI, c.State())
}

func (l *eventListener) OnSilence(c *connection.Connection) {
	l.enqueue(c, domain.ConnectionEventSilenced, c.State())
}

func (l *eventListener) enqueue(c *connection.Connection, eventType domain.ConnectionEventType, state domain.ConnectionState) {
	msg := queue.NewConnectionEventMessage(c.ID(), l.accountID, eventType, state)
	msg.Address = l.address
	msg.Direction = l.direction

	l.service.eventsMu.RLock()
	defer l.service.eventsMu.RUnlock()
	if l.service.eventsClosed {
		l.service.logger.Debug("event dropped after shutdown", zap.String("connection_id", c.ID().String()))
		return
	}

	select {
	case l.service.events <- msg:
	default:
		l.service.logger.Warn("event buffer full, dropping connection event",
			zap.String("connection_id", c.ID().String()),
			zap.String("type", string(eventType)),
		)
	}
}
