// Package connection drives a platform telephony connection from the state of
// an engine call.
package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/bluetooth"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
	"github.com/acme/call-connection/internal/telephony"
	apperrors "github.com/acme/call-connection/pkg/errors"
)

// Controller creates connections for calls.
type Controller struct {
	registrar   telephony.Registrar
	level       platform.Level
	permissions platform.Permissions
	logger      *zap.Logger
}

// NewController builds a controller for the given platform.
func NewController(registrar telephony.Registrar, level platform.Level, permissions platform.Permissions, logger *zap.Logger) *Controller {
	if permissions == nil {
		permissions = platform.StaticPermissions{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		registrar:   registrar,
		level:       level,
		permissions: permissions,
		logger:      logger.Named("connection"),
	}
}

// Level returns the platform level connections are created for.
func (c *Controller) Level() platform.Level {
	return c.level
}

// Create registers a connection for call and starts mirroring its state.
// The connection's scope is a child of parent. Listeners passed here observe
// every transition, including the first.
func (c *Controller) Create(parent context.Context, req telephony.Request, call Call, listeners ...Listener) (*Connection, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("%w: call is required", apperrors.ErrValidation)
	}

	handle, err := c.registrar.Register(parent, req)
	if err != nil {
		return nil, fmt.Errorf("connection: register: %w", err)
	}

	handle.SetInitializing()
	handle.SetAddress(req.Address, telephony.PresentationAllowed)
	handle.SetProperties(telephony.PropertySelfManaged)
	handle.SetAudioModeIsVoIP(true)
	handle.SetCapabilities(telephony.DefaultCapabilities)
	handle.SetExtras(req.Extras)

	id := uuid.New()
	logger := c.logger.With(zap.String("connection_id", id.String()))
	namer := bluetooth.NewNamer(c.level, c.permissions)

	ctx, cancel := context.WithCancel(parent)
	conn := &Connection{
		id:        id,
		request:   req,
		handle:    handle,
		call:      call,
		level:     c.level,
		audio:     audio.NewReconciler(c.level, namer, call.ActivityClass(), logger),
		logger:    logger,
		createdAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.ConnectionState{Status: domain.ConnectionStatusInitializing},
	}

	logger.Debug("connection created",
		zap.String("address", req.Address),
		zap.String("direction", string(req.Direction)),
		zap.Int("platform_level", int(c.level)),
	)

	for _, l := range listeners {
		conn.AddListener(l)
	}

	go conn.syncStateWithCall()
	return conn, nil
}

func validateRequest(req telephony.Request) error {
	if strings.TrimSpace(req.Address) == "" {
		return fmt.Errorf("%w: address is required", apperrors.ErrValidation)
	}
	for key := range req.Extras {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: extras keys must not be empty", apperrors.ErrValidation)
		}
	}
	switch req.Direction {
	case "", domain.DirectionIncoming, domain.DirectionOutgoing:
	default:
		return fmt.Errorf("%w: unknown direction %q", apperrors.ErrValidation, req.Direction)
	}
	return nil
}
