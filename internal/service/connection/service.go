package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/callengine"
	"github.com/acme/call-connection/internal/connection"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
	"github.com/acme/call-connection/internal/queue"
	"github.com/acme/call-connection/internal/telephony"
	apperrors "github.com/acme/call-connection/pkg/errors"
)

// SlotLimiter caps live connections per account.
type SlotLimiter interface {
	Acquire(ctx context.Context, accountID string) (bool, error)
	Release(ctx context.Context, accountID string) error
}

// EventPublisher emits connection lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, msg queue.ConnectionEventMessage) error
}

// Options configures the service.
type Options struct {
	DefaultAccountID string
	// EventBuffer bounds the number of lifecycle events waiting to be published.
	EventBuffer int
}

// Service owns every live connection of this process.
type Service struct {
	controller  *connection.Controller
	engine      *callengine.Engine
	limiter     SlotLimiter
	publisher   EventPublisher
	permissions platform.Permissions
	opts        Options
	logger      *zap.Logger
	tracer      trace.Tracer

	// scope is the parent of every connection scope.
	scope       context.Context
	cancelScope context.CancelFunc

	eventsMu      sync.RWMutex
	eventsClosed  bool
	events        chan queue.ConnectionEventMessage
	publisherDone chan struct{}

	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	wg      sync.WaitGroup
}

type entry struct {
	conn      *connection.Connection
	call      *callengine.Call
	accountID string
}

// NewService builds the service and starts its event publishing loop.
func NewService(
	controller *connection.Controller,
	engine *callengine.Engine,
	limiter SlotLimiter,
	publisher EventPublisher,
	permissions platform.Permissions,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if permissions == nil {
		permissions = platform.StaticPermissions{}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 1024
	}
	if opts.DefaultAccountID == "" {
		opts.DefaultAccountID = "default"
	}

	scope, cancel := context.WithCancel(context.Background())
	s := &Service{
		controller:    controller,
		engine:        engine,
		limiter:       limiter,
		publisher:     publisher,
		permissions:   permissions,
		opts:          opts,
		logger:        logger.Named("connection-service"),
		tracer:        otel.Tracer("connection.service"),
		scope:         scope,
		cancelScope:   cancel,
		events:        make(chan queue.ConnectionEventMessage, opts.EventBuffer),
		publisherDone: make(chan struct{}),
		entries:       make(map[uuid.UUID]*entry),
	}
	go s.publishLoop()
	return s
}

// CreateInput encapsulates the arguments for creating a connection.
type CreateInput struct {
	Address       string
	Extras        map[string]string
	Direction     domain.Direction
	AccountID     string
	ActivityClass string
}

// Snapshot is a read-only view of a connection.
type Snapshot struct {
	ID         uuid.UUID
	AccountID  string
	Address    string
	Direction  domain.Direction
	State      domain.ConnectionState
	CallState  domain.CallState
	Audio      domain.AudioRouteSet
	CreatedAt  time.Time
	ScopeAlive bool
}

// Create registers a connection backed by a new loopback call.
func (s *Service) Create(ctx context.Context, input CreateInput) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "connection.create", trace.WithAttributes(
		attribute.String("direction", string(input.Direction)),
	))
	defer span.End()

	if !s.permissions.Granted(platform.PermissionManageOwnCalls) {
		err := fmt.Errorf("%w: %w: telephony integration requires %s", apperrors.ErrUnavailable, apperrors.ErrPermissionDenied, platform.PermissionManageOwnCalls)
		span.RecordError(err)
		return Snapshot{}, err
	}

	accountID := input.AccountID
	if accountID == "" {
		accountID = s.opts.DefaultAccountID
	}
	span.SetAttributes(attribute.String("account.id", accountID))

	if s.limiter != nil {
		ok, err := s.limiter.Acquire(ctx, accountID)
		if err != nil {
			span.RecordError(err)
			return Snapshot{}, fmt.Errorf("connection service: acquire slot: %w", apperrors.ErrUnavailable)
		}
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: account %s has too many live connections", apperrors.ErrQuotaExceeded, accountID)
		}
	}

	call := s.engine.NewCall(input.ActivityClass)
	req := telephony.Request{
		Address:   input.Address,
		Extras:    input.Extras,
		Direction: input.Direction,
		AccountID: accountID,
	}

	listener := newEventListener(s, accountID, input.Address, input.Direction)
	conn, err := s.controller.Create(s.scope, req, call, listener)
	if err != nil {
		span.RecordError(err)
		s.engine.Forget(call.ID())
		s.releaseSlot(accountID)
		return Snapshot{}, fmt.Errorf("connection service: create: %w", err)
	}
	span.SetAttributes(attribute.String("connection.id", conn.ID().String()))

	e := &entry{conn: conn, call: call, accountID: accountID}
	s.mu.Lock()
	s.entries[conn.ID()] = e
	s.mu.Unlock()

	listener.enqueue(conn, domain.ConnectionEventCreated, conn.State())

	s.wg.Add(1)
	go s.awaitTermination(e, listener.terminal)

	s.logger.Info("connection created",
		zap.String("connection_id", conn.ID().String()),
		zap.String("account_id", accountID),
	)
	return snapshotOf(e), nil
}

func (s *Service) awaitTermination(e *entry, terminal <-chan struct{}) {
	defer s.wg.Done()
	<-terminal

	s.mu.Lock()
	delete(s.entries, e.conn.ID())
	s.mu.Unlock()

	s.engine.Forget(e.call.ID())
	s.releaseSlot(e.accountID)
}

func (s *Service) releaseSlot(accountID string) {
	if s.limiter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.limiter.Release(ctx, accountID); err != nil {
		s.logger.Warn("release slot", zap.String("account_id", accountID), zap.Error(err))
	}
}

// Get returns a live connection.
func (s *Service) Get(_ context.Context, id uuid.UUID) (Snapshot, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(e), nil
}

// List returns every live connection ordered by creation time.
func (s *Service) List(_ context.Context) []Snapshot {
	s.mu.RLock()
	result := make([]Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, snapshotOf(e))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// AccountIDs lists the accounts that currently hold live connections.
func (s *Service) AccountIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	accounts := make([]string, 0)
	for _, e := range s.entries {
		if _, ok := seen[e.accountID]; ok {
			continue
		}
		seen[e.accountID] = struct{}{}
		accounts = append(accounts, e.accountID)
	}
	sort.Strings(accounts)
	return accounts
}

// Answer answers an incoming connection.
func (s *Service) Answer(ctx context.Context, id uuid.UUID, videoState *int) (Snapshot, error) {
	return s.gesture(ctx, id, "answer", func(c *connection.Connection) {
		if videoState != nil {
			c.OnAnswerVideo(*videoState)
			return
		}
		c.OnAnswer()
	})
}

// RejectInput carries the optional reject variants.
type RejectInput struct {
	Reason  *int
	Message string
}

// Reject rejects a connection.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, input RejectInput) (Snapshot, error) {
	return s.gesture(ctx, id, "reject", func(c *connection.Connection) {
		switch {
		case input.Reason != nil:
			c.OnRejectReason(*input.Reason)
		case input.Message != "":
			c.OnRejectReply(input.Message)
		default:
			c.OnReject()
		}
	})
}

// Hold ends a connection on hold request.
func (s *Service) Hold(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.gesture(ctx, id, "hold", (*connection.Connection).OnHold)
}

// Abort aborts a connection.
func (s *Service) Abort(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.gesture(ctx, id, "abort", (*connection.Connection).OnAbort)
}

// Disconnect ends a connection locally.
func (s *Service) Disconnect(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.gesture(ctx, id, "disconnect", (*connection.Connection).OnDisconnect)
}

// ShowIncomingCallUI relays the platform request to listeners.
func (s *Service) ShowIncomingCallUI(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.gesture(ctx, id, "show_incoming_ui", (*connection.Connection).OnShowIncomingCallUI)
}

// Silence relays the platform silence request to listeners.
func (s *Service) Silence(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.gesture(ctx, id, "silence", (*connection.Connection).OnSilence)
}

func (s *Service) gesture(ctx context.Context, id uuid.UUID, name string, fn func(*connection.Connection)) (Snapshot, error) {
	_, span := s.tracer.Start(ctx, "connection.gesture", trace.WithAttributes(
		attribute.String("connection.id", id.String()),
		attribute.String("gesture", name),
	))
	defer span.End()

	e, err := s.lookup(id)
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}
	fn(e.conn)
	return snapshotOf(e), nil
}

// PushCallState feeds a state into the loopback call behind a connection.
func (s *Service) PushCallState(ctx context.Context, id uuid.UUID, state domain.CallState) (Snapshot, error) {
	if _, ok := domain.ParseCallStateKind(string(state.Kind)); !ok {
		return Snapshot{}, fmt.Errorf("%w: unknown call state %q", apperrors.ErrValidation, state.Kind)
	}
	_, span := s.tracer.Start(ctx, "connection.call_state", trace.WithAttributes(
		attribute.String("connection.id", id.String()),
		attribute.String("call_state", state.String()),
	))
	defer span.End()

	e, err := s.lookup(id)
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}
	e.call.Push(state)
	return snapshotOf(e), nil
}

// ApplyAudio forwards a platform audio event to a connection.
func (s *Service) ApplyAudio(ctx context.Context, id uuid.UUID, event audio.RouteEvent) (domain.AudioRouteSet, error) {
	_, span := s.tracer.Start(ctx, "connection.audio", trace.WithAttributes(
		attribute.String("connection.id", id.String()),
		attribute.String("event", fmt.Sprintf("%T", event)),
	))
	defer span.End()

	e, err := s.lookup(id)
	if err != nil {
		span.RecordError(err)
		return domain.AudioRouteSet{}, err
	}

	switch ev := event.(type) {
	case audio.BitmaskEvent:
		e.conn.OnCallAudioStateChanged(ev)
	case audio.EndpointsEvent:
		e.conn.OnAvailableEndpointsChanged(ev.Endpoints)
	case audio.EndpointChangedEvent:
		e.conn.OnCallEndpointChanged(ev.Endpoint)
	case audio.MuteEvent:
		e.conn.OnMuteStateChanged(ev.Muted)
	default:
		return domain.AudioRouteSet{}, fmt.Errorf("%w: unsupported audio event", apperrors.ErrValidation)
	}
	return e.conn.AudioRoutes(), nil
}

// SetAudioOutput routes a connection's audio to output.
func (s *Service) SetAudioOutput(ctx context.Context, id uuid.UUID, output domain.AudioOutput) (domain.AudioRouteSet, error) {
	_, span := s.tracer.Start(ctx, "connection.audio", trace.WithAttributes(
		attribute.String("connection.id", id.String()),
		attribute.String("output", string(output.Kind)),
	))
	defer span.End()

	e, err := s.lookup(id)
	if err != nil {
		return domain.AudioRouteSet{}, err
	}
	if err := e.conn.SetAudioOutput(output); err != nil {
		span.RecordError(err)
		if errors.Is(err, audio.ErrUnknownOutput) {
			return domain.AudioRouteSet{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		return domain.AudioRouteSet{}, err
	}
	return e.conn.AudioRoutes(), nil
}

// ActivityKind enumerates activity lifecycle notifications.
type ActivityKind string

const (
	ActivityResumed   ActivityKind = "resumed"
	ActivityPaused    ActivityKind = "paused"
	ActivityDestroyed ActivityKind = "destroyed"
)

// Activity reports an activity lifecycle change for a connection.
func (s *Service) Activity(_ context.Context, id uuid.UUID, kind ActivityKind, class string) (domain.AudioRouteSet, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.AudioRouteSet{}, err
	}
	switch kind {
	case ActivityResumed:
		e.conn.OnActivityResumed(class)
	case ActivityPaused:
		e.conn.OnActivityPaused(class)
	case ActivityDestroyed:
		e.conn.OnActivityDestroyed(class)
	default:
		return domain.AudioRouteSet{}, fmt.Errorf("%w: unknown activity event %q", apperrors.ErrValidation, kind)
	}
	return e.conn.AudioRoutes(), nil
}

// Shutdown disconnects every live connection and flushes pending events.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	live := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		live = append(live, e)
	}
	s.mu.RUnlock()

	for _, e := range live {
		e.conn.OnDisconnect()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("connection service: shutdown: %w", ctx.Err())
	}

	s.eventsMu.Lock()
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
		s.cancelScope()
	}
	s.eventsMu.Unlock()

	select {
	case <-s.publisherDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection service: flush events: %w", ctx.Err())
	}
}

func (s *Service) lookup(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	return e, nil
}

func (s *Service) publishLoop() {
	defer close(s.publisherDone)
	for msg := range s.events {
		if s.publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.publisher.PublishEvent(ctx, msg); err != nil {
			s.logger.Warn("publish connection event",
				zap.String("connection_id", msg.ConnectionID.String()),
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func snapshotOf(e *entry) Snapshot {
	return Snapshot{
		ID:         e.conn.ID(),
		AccountID:  e.accountID,
		Address:    e.conn.Address(),
		Direction:  e.conn.Request().Direction,
		State:      e.conn.State(),
		CallState:  e.call.State(),
		Audio:      e.conn.AudioRoutes(),
		CreatedAt:  e.conn.CreatedAt(),
		ScopeAlive: e.conn.Active(),
	}
}
