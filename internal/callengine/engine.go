// Package callengine provides a loopback call engine whose state is driven
// externally, for deployments without a conferencing engine attached.
package callengine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/acme/call-connection/internal/domain"
)

// Engine creates loopback calls.
type Engine struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*Call
}

// New constructs an empty engine.
func New() *Engine {
	return &Engine{calls: make(map[uuid.UUID]*Call)}
}

// NewCall creates a call presented by activityClass, starting in Connecting.
func (e *Engine) NewCall(activityClass string) *Call {
	call := &Call{
		id:       uuid.New(),
		activity: activityClass,
		state:    domain.CallState{Kind: domain.CallStateConnecting},
		subs:     make(map[chan domain.CallState]struct{}),
	}
	e.mu.Lock()
	e.calls[call.id] = call
	e.mu.Unlock()
	return call
}

// Get returns a call created by this engine.
func (e *Engine) Get(id uuid.UUID) (*Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	call, ok := e.calls[id]
	return call, ok
}

// Forget drops a call from the engine's index.
func (e *Engine) Forget(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.calls, id)
}

// Call is a loopback call. Its state stream replays the latest state to new
// subscribers and never blocks the producer.
type Call struct {
	id       uuid.UUID
	activity string

	mu           sync.Mutex
	state        domain.CallState
	subs         map[chan domain.CallState]struct{}
	connectCount int
	endCount     int
}

// ID identifies the call.
func (c *Call) ID() uuid.UUID {
	return c.id
}

// ActivityClass implements connection.Call.
func (c *Call) ActivityClass() string {
	return c.activity
}

// State returns the latest state.
func (c *Call) State() domain.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// States implements connection.Call.
func (c *Call) States(ctx context.Context) <-chan domain.CallState {
	ch := make(chan domain.CallState, 1)

	c.mu.Lock()
	ch <- c.state
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// Push publishes a new state. Slow subscribers only observe the newest one.
func (c *Call) Push(state domain.CallState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

// Connect implements connection.Call.
func (c *Call) Connect() {
	c.mu.Lock()
	c.connectCount++
	c.mu.Unlock()
	c.Push(domain.CallState{Kind: domain.CallStateConnected})
}

// End implements connection.Call.
func (c *Call) End() {
	c.mu.Lock()
	c.endCount++
	c.mu.Unlock()
	c.Push(domain.CallState{Kind: domain.CallStateEnded})
}

// ConnectCount returns how many times Connect was invoked.
func (c *Call) ConnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCount
}

// EndCount returns how many times End was invoked.
func (c *Call) EndCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endCount
}
