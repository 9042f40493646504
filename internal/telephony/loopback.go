package telephony

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/domain"
)

// Loopback is a Registrar with no platform behind it. Handles only log what
// they are told and are forgotten once destroyed.
type Loopback struct {
	live   atomic.Int64
	logger *zap.Logger
}

// NewLoopback constructs a loopback registrar.
func NewLoopback(logger *zap.Logger) *Loopback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loopback{logger: logger.Named("loopback")}
}

// Register implements Registrar.
func (l *Loopback) Register(ctx context.Context, req Request) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.live.Add(1)
	return &loopbackHandle{
		owner:  l,
		logger: l.logger.With(zap.String("account_id", req.AccountID), zap.String("direction", string(req.Direction))),
	}, nil
}

// Live returns the number of handles registered and not yet destroyed.
func (l *Loopback) Live() int64 {
	return l.live.Load()
}

type loopbackHandle struct {
	owner     *Loopback
	logger    *zap.Logger
	destroyed sync.Once
}

func (h *loopbackHandle) SetInitializing()                         { h.logger.Debug("initializing") }
func (h *loopbackHandle) SetAddress(string, Presentation)          {}
func (h *loopbackHandle) SetProperties(Property)                   {}
func (h *loopbackHandle) SetAudioModeIsVoIP(bool)                  {}
func (h *loopbackHandle) SetCapabilities(Capability)               {}
func (h *loopbackHandle) SetExtras(map[string]string)              {}
func (h *loopbackHandle) SetActive()                               { h.logger.Debug("active") }
func (h *loopbackHandle) SetAudioRoute(route audio.Route)          { h.logger.Debug("audio route", zap.Int("route", int(route))) }
func (h *loopbackHandle) RequestBluetoothAudio(id string)          { h.logger.Debug("bluetooth audio", zap.String("device", id)) }
func (h *loopbackHandle) RequestEndpointChange(id string)          { h.logger.Debug("endpoint change", zap.String("endpoint_id", id)) }
func (h *loopbackHandle) SetDisconnected(c domain.DisconnectCause) { h.logger.Debug("disconnected", zap.String("cause", string(c))) }

func (h *loopbackHandle) Destroy() {
	h.destroyed.Do(func() {
		h.owner.live.Add(-1)
		h.logger.Debug("destroyed")
	})
}
