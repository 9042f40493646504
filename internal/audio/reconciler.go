// Package audio reconciles host platform audio routing reports into a unified
// current/available output model.
package audio

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/bluetooth"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
)

// ErrUnknownOutput is returned when a selected output matches no reported device.
var ErrUnknownOutput = errors.New("audio output not available")

// Reconciler folds route events into the current and available outputs.
//
// The route derived from the platform is tracked apart from the mute flags so
// that unmuting restores whatever route was reported last. A mute requested
// through Select on endpoint levels is never echoed by the platform, so it is
// kept apart from the reported mute and dropped on the next route change.
// Available outputs are only published while the call's activity is in the
// foreground.
type Reconciler struct {
	level    platform.Level
	namer    *bluetooth.Namer
	activity string
	logger   *zap.Logger

	mu        sync.Mutex
	gateOpen  bool
	muted     bool
	requested bool
	route     *domain.AudioOutput
	outputs   []domain.AudioOutput
	bitmask   *BitmaskEvent
	endpoints []Endpoint

	current   *Value[*domain.AudioOutput]
	available *Value[[]domain.AudioOutput]
}

// NewReconciler builds a reconciler gated on the given activity class.
func NewReconciler(level platform.Level, namer *bluetooth.Namer, activityClass string, logger *zap.Logger) *Reconciler {
	if namer == nil {
		namer = bluetooth.NewNamer(level, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		level:     level,
		namer:     namer,
		activity:  activityClass,
		logger:    logger,
		current:   NewValue(domain.EqualOutputPtr),
		available: NewValue(domain.EqualOutputs),
	}
}

// Current is the observable current output. Nil means unknown.
func (r *Reconciler) Current() *Value[*domain.AudioOutput] {
	return r.current
}

// Available is the observable list of selectable outputs.
func (r *Reconciler) Available() *Value[[]domain.AudioOutput] {
	return r.available
}

// Snapshot returns the published route set.
func (r *Reconciler) Snapshot() domain.AudioRouteSet {
	current, _ := r.current.Get()
	available, _ := r.available.Get()
	return domain.AudioRouteSet{Current: current, Available: available}
}

// Apply consumes one platform event and republishes the derived outputs.
func (r *Reconciler) Apply(event RouteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := event.(type) {
	case BitmaskEvent:
		r.bitmask = &e
		r.muted = e.Muted
		r.requested = false
		r.route = r.bitmaskRoute(e)
		r.outputs = r.bitmaskOutputs(e)
	case EndpointsEvent:
		r.endpoints = append([]Endpoint(nil), e.Endpoints...)
		r.outputs = r.endpointOutputs(e.Endpoints)
	case EndpointChangedEvent:
		out, ok := r.endpointOutput(e.Endpoint)
		if !ok {
			r.logger.Debug("audio: ignoring unknown endpoint", zap.String("endpoint_id", e.Endpoint.ID))
			return
		}
		r.route = &out
		r.requested = false
	case MuteEvent:
		r.muted = e.Muted
		r.requested = false
	default:
		r.logger.Warn("audio: unsupported route event", zap.String("type", fmt.Sprintf("%T", event)))
		return
	}

	r.current.Set(r.currentLocked())
	if r.gateOpen && r.outputs != nil {
		r.available.Set(r.outputs)
	}
}

// ActivityResumed opens the gate when class is the call's activity and
// republishes the available outputs. Any other activity closes it.
func (r *Reconciler) ActivityResumed(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if class == "" || class != r.activity {
		r.gateOpen = false
		return
	}
	r.gateOpen = true
	if r.outputs != nil {
		r.available.Publish(r.outputs)
	}
}

// ActivityPaused closes the gate when the call's activity leaves the foreground.
func (r *Reconciler) ActivityPaused(class string) {
	r.closeGate(class)
}

// ActivityDestroyed closes the gate when the call's activity is destroyed.
func (r *Reconciler) ActivityDestroyed(class string) {
	r.closeGate(class)
}

func (r *Reconciler) closeGate(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if class == r.activity {
		r.gateOpen = false
	}
}

// Foreground reports whether available outputs are currently published.
func (r *Reconciler) Foreground() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gateOpen
}

// Select asks the platform to route audio to output.
func (r *Reconciler) Select(output domain.AudioOutput, router Router) error {
	if r.level.SupportsCallEndpoints() {
		return r.selectEndpoint(output, router)
	}
	return r.selectRoute(output, router)
}

func (r *Reconciler) selectEndpoint(output domain.AudioOutput, router Router) error {
	if output.Kind == domain.AudioOutputMuted {
		r.requestMute(true)
		return nil
	}

	r.mu.Lock()
	var target *Endpoint
	for i := range r.endpoints {
		out, ok := r.endpointOutput(r.endpoints[i])
		if ok && out.SameDevice(output) {
			target = &r.endpoints[i]
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return fmt.Errorf("audio: select %s: %w", output.Kind, ErrUnknownOutput)
	}
	r.requestMute(false)
	router.RequestEndpointChange(target.ID)
	return nil
}

func (r *Reconciler) requestMute(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = muted
	r.current.Set(r.currentLocked())
}

func (r *Reconciler) selectRoute(output domain.AudioOutput, router Router) error {
	switch output.Kind {
	case domain.AudioOutputSpeaker:
		router.SetAudioRoute(RouteSpeaker)
	case domain.AudioOutputEarpiece:
		router.SetAudioRoute(RouteEarpiece)
	case domain.AudioOutputWiredHeadset:
		router.SetAudioRoute(RouteWiredHeadset)
	case domain.AudioOutputBluetooth:
		if !r.level.SupportsBluetoothDeviceList() {
			router.SetAudioRoute(RouteBluetooth)
			return nil
		}
		device, ok := r.connectedDevice(output.ID)
		if !ok {
			return fmt.Errorf("audio: select bluetooth %q: %w", output.ID, ErrUnknownOutput)
		}
		router.RequestBluetoothAudio(device.Address)
	case domain.AudioOutputMuted:
		r.mu.Lock()
		last := r.bitmask
		r.mu.Unlock()
		if last == nil {
			r.Apply(MuteEvent{Muted: true})
			return nil
		}
		muted := *last
		muted.Muted = true
		r.Apply(muted)
	default:
		return fmt.Errorf("audio: select %q: %w", output.Kind, ErrUnknownOutput)
	}
	return nil
}

func (r *Reconciler) connectedDevice(id string) (bluetooth.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bitmask == nil {
		return bluetooth.Device{}, false
	}
	for _, d := range r.bitmask.BluetoothDevices {
		if d.Address == id {
			return d, true
		}
	}
	return bluetooth.Device{}, false
}

func (r *Reconciler) currentLocked() *domain.AudioOutput {
	if r.muted || r.requested {
		muted := domain.Muted
		return &muted
	}
	if r.route == nil {
		return nil
	}
	route := *r.route
	return &route
}

func (r *Reconciler) bitmaskOutputs(e BitmaskEvent) []domain.AudioOutput {
	var outs []domain.AudioOutput
	// A plugged headset takes over the earpiece.
	if e.SupportedMask.Has(RouteEarpiece) && !e.SupportedMask.Has(RouteWiredHeadset) {
		outs = append(outs, domain.Earpiece)
	}
	if e.SupportedMask.Has(RouteSpeaker) {
		outs = append(outs, domain.Speaker)
	}
	if e.SupportedMask.Has(RouteWiredHeadset) {
		outs = append(outs, domain.WiredHeadset)
	}
	if e.SupportedMask.Has(RouteBluetooth) {
		if r.level.SupportsBluetoothDeviceList() && len(e.BluetoothDevices) > 0 {
			for _, d := range e.BluetoothDevices {
				outs = append(outs, r.namer.Resolve(d))
			}
		} else {
			outs = append(outs, domain.Bluetooth("", nil))
		}
	}
	return domain.NormalizeOutputs(outs)
}

func (r *Reconciler) bitmaskRoute(e BitmaskEvent) *domain.AudioOutput {
	var out domain.AudioOutput
	switch e.Route {
	case RouteEarpiece:
		out = domain.Earpiece
	case RouteSpeaker:
		out = domain.Speaker
	case RouteWiredHeadset:
		out = domain.WiredHeadset
	case RouteBluetooth:
		if r.level.SupportsBluetoothDeviceList() && e.ActiveBluetooth != nil {
			out = r.namer.Resolve(*e.ActiveBluetooth)
		} else {
			out = domain.Bluetooth("", nil)
		}
	default:
		return nil
	}
	return &out
}

func (r *Reconciler) endpointOutputs(endpoints []Endpoint) []domain.AudioOutput {
	outs := make([]domain.AudioOutput, 0, len(endpoints))
	for _, ep := range endpoints {
		if out, ok := r.endpointOutput(ep); ok {
			outs = append(outs, out)
		}
	}
	return domain.NormalizeOutputs(outs)
}

func (r *Reconciler) endpointOutput(ep Endpoint) (domain.AudioOutput, bool) {
	switch ep.Type {
	case EndpointEarpiece:
		return domain.Earpiece, true
	case EndpointSpeaker:
		return domain.Speaker, true
	case EndpointWiredHeadset:
		return domain.WiredHeadset, true
	case EndpointBluetooth:
		return r.namer.Resolve(bluetooth.Device{Address: ep.ID, Name: ep.Name}), true
	default:
		return domain.AudioOutput{}, false
	}
}
