package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/telephony"
)

// Registrar is an in-memory platform telephony service.
type Registrar struct {
	mu       sync.Mutex
	handles  []*Handle
	rejectFn func(telephony.Request) bool
}

// NewRegistrar constructs an in-memory registrar accepting every request.
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// RejectWhen makes Register fail for requests matching fn.
func (r *Registrar) RejectWhen(fn func(telephony.Request) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectFn = fn
}

// Register implements telephony.Registrar.
func (r *Registrar) Register(ctx context.Context, req telephony.Request) (telephony.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectFn != nil && r.rejectFn(req) {
		return nil, fmt.Errorf("mock registrar: %s: %w", req.Address, telephony.ErrRegistrationRejected)
	}
	h := &Handle{Request: req}
	r.handles = append(r.handles, h)
	return h, nil
}

// Handles returns every handle registered so far.
func (r *Registrar) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Handle(nil), r.handles...)
}

// Handle records every instruction it receives.
type Handle struct {
	Request telephony.Request

	mu            sync.Mutex
	initializing  bool
	address       string
	presentation  telephony.Presentation
	properties    telephony.Property
	voip          bool
	capabilities  telephony.Capability
	extras        map[string]string
	activeCount   int
	disconnects   []domain.DisconnectCause
	destroyCount  int
	routes        []audio.Route
	btRequests    []string
	endpointCalls []string
}

func (h *Handle) SetInitializing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initializing = true
}

func (h *Handle) SetAddress(address string, presentation telephony.Presentation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.address = address
	h.presentation = presentation
}

func (h *Handle) SetProperties(props telephony.Property) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.properties = props
}

func (h *Handle) SetAudioModeIsVoIP(voip bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.voip = voip
}

func (h *Handle) SetCapabilities(caps telephony.Capability) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capabilities = caps
}

func (h *Handle) SetExtras(extras map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extras = make(map[string]string, len(extras))
	for k, v := range extras {
		h.extras[k] = v
	}
}

func (h *Handle) SetActive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initializing = false
	h.activeCount++
}

func (h *Handle) SetDisconnected(cause domain.DisconnectCause) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects = append(h.disconnects, cause)
}

func (h *Handle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyCount++
}

func (h *Handle) SetAudioRoute(route audio.Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
}

func (h *Handle) RequestBluetoothAudio(deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.btRequests = append(h.btRequests, deviceID)
}

func (h *Handle) RequestEndpointChange(endpointID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpointCalls = append(h.endpointCalls, endpointID)
}

// Snapshot is a copy of everything a handle recorded.
type Snapshot struct {
	Initializing     bool
	Address          string
	Presentation     telephony.Presentation
	Properties       telephony.Property
	VoIP             bool
	Capabilities     telephony.Capability
	Extras           map[string]string
	ActiveCount      int
	Disconnects      []domain.DisconnectCause
	DestroyCount     int
	Routes           []audio.Route
	BluetoothRequest []string
	EndpointRequests []string
}

// Snapshot returns a copy of the recorded state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	extras := make(map[string]string, len(h.extras))
	for k, v := range h.extras {
		extras[k] = v
	}
	return Snapshot{
		Initializing:     h.initializing,
		Address:          h.address,
		Presentation:     h.presentation,
		Properties:       h.properties,
		VoIP:             h.voip,
		Capabilities:     h.capabilities,
		Extras:           extras,
		ActiveCount:      h.activeCount,
		Disconnects:      append([]domain.DisconnectCause(nil), h.disconnects...),
		DestroyCount:     h.destroyCount,
		Routes:           append([]audio.Route(nil), h.routes...),
		BluetoothRequest: append([]string(nil), h.btRequests...),
		EndpointRequests: append([]string(nil), h.endpointCalls...),
	}
}
