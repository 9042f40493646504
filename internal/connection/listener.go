package connection

import (
	"context"

	"github.com/acme/call-connection/internal/domain"
)

// Call is the engine-side call a connection mirrors.
type Call interface {
	// States streams call states until ctx is cancelled.
	States(ctx context.Context) <-chan domain.CallState
	Connect()
	End()
	// ActivityClass names the foreground activity that presents this call.
	ActivityClass() string
}

// Listener observes a connection. Callbacks run in registration order without
// the connection's lock held. A callback may call back into the connection;
// notifications that call queues are delivered after the callback returns.
type Listener interface {
	OnConnectionStateChange(c *Connection)
	OnShowIncomingCallUI(c *Connection)
	OnSilence(c *Connection)
}

// BaseListener implements Listener with no-ops, for embedding.
type BaseListener struct{}

func (BaseListener) OnConnectionStateChange(*Connection) {}
func (BaseListener) OnShowIncomingCallUI(*Connection)    {}
func (BaseListener) OnSilence(*Connection)               {}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	StateChange    func(c *Connection)
	ShowIncomingUI func(c *Connection)
	Silence        func(c *Connection)
}

func (f ListenerFuncs) OnConnectionStateChange(c *Connection) {
	if f.StateChange != nil {
		f.StateChange(c)
	}
}

func (f ListenerFuncs) OnShowIncomingCallUI(c *Connection) {
	if f.ShowIncomingUI != nil {
		f.ShowIncomingUI(c)
	}
}

func (f ListenerFuncs) OnSilence(c *Connection) {
	if f.Silence != nil {
		f.Silence(c)
	}
}
