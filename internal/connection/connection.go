package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/disconnect"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
	"github.com/acme/call-connection/internal/telephony"
	apperrors "github.com/acme/call-connection/pkg/errors"
)

// Connection mirrors one engine call onto one platform connection.
//
// Transitions are serialized by mu: the first terminal path to acquire it
// wins and every later one is a no-op. Listener callbacks are queued under mu
// and delivered in order after it is released, so a listener may call back
// into the connection. The owned scope is cancelled as the last step of the
// terminal procedure and never from anywhere else.
type Connection struct {
	id        uuid.UUID
	request   telephony.Request
	handle    telephony.Handle
	call      Call
	level     platform.Level
	audio     *audio.Reconciler
	logger    *zap.Logger
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	answered   core.Fuse
	terminated core.Fuse

	mu           sync.Mutex
	listeners    []listenerEntry
	nextListener uint64
	pending      []func()
	dispatching  bool

	stateMu sync.RWMutex
	state   domain.ConnectionState
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// ID identifies the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Request returns the request the connection was created for.
func (c *Connection) Request() telephony.Request {
	return c.request
}

// Address returns the remote address the connection was created for.
func (c *Connection) Address() string {
	return c.request.Address
}

// Call returns the engine call behind the connection.
func (c *Connection) Call() Call {
	return c.call
}

// CreatedAt returns the creation time in UTC.
func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// State returns the current lifecycle state.
func (c *Connection) State() domain.ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Done is closed once the terminal procedure has started.
func (c *Connection) Done() <-chan struct{} {
	return c.terminated.Watch()
}

// Active reports whether the owned scope is still running.
func (c *Connection) Active() bool {
	return c.ctx.Err() == nil
}

// CurrentAudioDevice is the observable current audio output.
func (c *Connection) CurrentAudioDevice() *audio.Value[*domain.AudioOutput] {
	return c.audio.Current()
}

// AvailableAudioDevices is the observable list of selectable outputs.
func (c *Connection) AvailableAudioDevices() *audio.Value[[]domain.AudioOutput] {
	return c.audio.Available()
}

// AudioRoutes returns the published audio route set.
func (c *Connection) AudioRoutes() domain.AudioRouteSet {
	return c.audio.Snapshot()
}

// AddListener registers l and returns a function that unregisters it.
// Listeners added after termination are ignored. A listener removed while a
// notification is being delivered may still receive that notification.
func (c *Connection) AddListener(l Listener) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated.IsBroken() {
		return func() {}
	}
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, listener: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.listeners {
			if entry.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnAnswer connects the call. Repeated invocations connect at most once.
func (c *Connection) OnAnswer() {
	c.mu.Lock()
	if c.terminated.IsBroken() || c.answered.IsBroken() {
		c.mu.Unlock()
		c.logger.Debug("ignoring answer")
		return
	}
	c.answered.Break()
	c.mu.Unlock()

	c.logger.Info("answering call")
	c.call.Connect()
}

// OnAnswerVideo is the video variant of OnAnswer and shares its guard.
func (c *Connection) OnAnswerVideo(videoState int) {
	c.logger.Debug("answer with video state", zap.Int("video_state", videoState))
	c.OnAnswer()
}

// OnReject ends the call as rejected.
func (c *Connection) OnReject() {
	c.endByGesture(domain.DisconnectCauseRejected)
}

// OnRejectReason ends the call as rejected. The platform reason is only logged.
func (c *Connection) OnRejectReason(reason int) {
	c.logger.Debug("reject with reason", zap.Int("reason", reason))
	c.endByGesture(domain.DisconnectCauseRejected)
}

// OnRejectReply ends the call as rejected. The reply text is only logged.
func (c *Connection) OnRejectReply(reply string) {
	c.logger.Debug("reject with message", zap.Int("reply_length", len(reply)))
	c.endByGesture(domain.DisconnectCauseRejected)
}

// OnAbort ends the call with an unspecified cause.
func (c *Connection) OnAbort() {
	c.endByGesture(domain.DisconnectCauseOther)
}

// OnHold ends the call. Self-managed calls are not kept on hold.
func (c *Connection) OnHold() {
	c.endByGesture(domain.DisconnectCauseLocal)
}

// OnDisconnect ends the call locally.
func (c *Connection) OnDisconnect() {
	c.endByGesture(domain.DisconnectCauseLocal)
}

// OnShowIncomingCallUI forwards the platform request to listeners.
func (c *Connection) OnShowIncomingCallUI() {
	c.notify(Listener.OnShowIncomingCallUI)
}

// OnSilence forwards the platform silence request to listeners.
func (c *Connection) OnSilence() {
	c.notify(Listener.OnSilence)
}

// OnCallAudioStateChanged consumes a legacy audio state report. It is
// ignored on platforms that deliver endpoint events.
func (c *Connection) OnCallAudioStateChanged(state audio.BitmaskEvent) {
	if c.level.SupportsCallEndpoints() {
		return
	}
	c.applyAudio(state)
}

// OnAvailableEndpointsChanged consumes the available endpoint list.
func (c *Connection) OnAvailableEndpointsChanged(endpoints []audio.Endpoint) {
	c.applyAudio(audio.EndpointsEvent{Endpoints: endpoints})
}

// OnCallEndpointChanged consumes the current endpoint.
func (c *Connection) OnCallEndpointChanged(endpoint audio.Endpoint) {
	c.applyAudio(audio.EndpointChangedEvent{Endpoint: endpoint})
}

// OnMuteStateChanged consumes a mute change.
func (c *Connection) OnMuteStateChanged(muted bool) {
	c.applyAudio(audio.MuteEvent{Muted: muted})
}

// OnActivityResumed reports a foregrounded activity.
func (c *Connection) OnActivityResumed(class string) {
	c.audio.ActivityResumed(class)
}

// OnActivityPaused reports a backgrounded activity.
func (c *Connection) OnActivityPaused(class string) {
	c.audio.ActivityPaused(class)
}

// OnActivityDestroyed reports a destroyed activity.
func (c *Connection) OnActivityDestroyed(class string) {
	c.audio.ActivityDestroyed(class)
}

// SetAudioOutput asks the platform to route audio to output.
func (c *Connection) SetAudioOutput(output domain.AudioOutput) error {
	if c.terminated.IsBroken() {
		return fmt.Errorf("connection: set audio output: %w", apperrors.ErrConflict)
	}
	if err := c.audio.Select(output, c.handle); err != nil {
		return fmt.Errorf("connection: set audio output: %w", err)
	}
	return nil
}

func (c *Connection) applyAudio(event audio.RouteEvent) {
	if c.terminated.IsBroken() {
		return
	}
	c.audio.Apply(event)
}

func (c *Connection) syncStateWithCall() {
	states := c.call.States(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if c.onCallState(state) {
				return
			}
		}
	}
}

// onCallState applies one call state and reports whether the subscription is finished.
func (c *Connection) onCallState(state domain.CallState) bool {
	c.logger.Debug("call state", zap.String("state", state.String()))

	if state.IsEnded() {
		cause, err := disconnect.Map(state, c.level)
		if err != nil {
			c.logger.Error("map call state", zap.Error(err))
			cause = domain.DisconnectCauseOther
		}
		c.terminate(cause, false)
		return true
	}

	if state.Kind != domain.CallStateConnected {
		return false
	}

	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.terminated.IsBroken() || c.State().Status == domain.ConnectionStatusActive {
		return false
	}
	c.handle.SetActive()
	c.setStateLocked(domain.ConnectionState{Status: domain.ConnectionStatusActive})
	return false
}

func (c *Connection) endByGesture(cause domain.DisconnectCause) {
	c.terminate(cause, true)
}

// terminate runs the terminal procedure once: end the call (gestures only),
// disconnect and destroy the platform connection, notify and drop listeners,
// then cancel the owned scope.
func (c *Connection) terminate(cause domain.DisconnectCause, endCall bool) bool {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if c.terminated.IsBroken() {
		return false
	}
	c.terminated.Break()

	c.logger.Info("disconnecting", zap.String("cause", string(cause)), zap.Bool("end_call", endCall))

	if endCall {
		c.call.End()
	}
	c.handle.SetDisconnected(cause)
	c.setStateLocked(domain.ConnectionState{Status: domain.ConnectionStatusDisconnected, Cause: cause})
	c.handle.Destroy()
	c.listeners = nil
	c.pending = append(c.pending, c.cancel)
	return true
}

func (c *Connection) setStateLocked(state domain.ConnectionState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()

	c.enqueueLocked(Listener.OnConnectionStateChange)
}

func (c *Connection) notify(fn func(Listener, *Connection)) {
	c.mu.Lock()
	c.enqueueLocked(fn)
	c.unlockAndDispatch()
}

// enqueueLocked queues fn for the listeners registered right now.
func (c *Connection) enqueueLocked(fn func(Listener, *Connection)) {
	if len(c.listeners) == 0 {
		return
	}
	targets := make([]Listener, len(c.listeners))
	for i, entry := range c.listeners {
		targets[i] = entry.listener
	}
	c.pending = append(c.pending, func() {
		for _, l := range targets {
			fn(l, c)
		}
	})
}

// unlockAndDispatch releases mu and runs queued callbacks in order. Only one
// goroutine drains at a time; callbacks queued by a reentrant call are picked
// up by the loop already running.
func (c *Connection) unlockAndDispatch() {
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		next()
		c.mu.Lock()
	}
	c.pending = nil
	c.dispatching = false
	c.mu.Unlock()
}
