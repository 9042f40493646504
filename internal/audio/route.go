package audio

import "github.com/acme/call-connection/internal/bluetooth"

// Route is the host platform's audio route bitmask.
type Route int

const (
	RouteEarpiece     Route = 1
	RouteBluetooth    Route = 2
	RouteWiredHeadset Route = 4
	RouteSpeaker      Route = 8
)

// Has reports whether every bit of other is set.
func (r Route) Has(other Route) bool {
	return r&other == other && other != 0
}

// EndpointType tags an endpoint of the newer audio API.
type EndpointType string

const (
	EndpointUnknown      EndpointType = "unknown"
	EndpointEarpiece     EndpointType = "earpiece"
	EndpointSpeaker      EndpointType = "speaker"
	EndpointWiredHeadset EndpointType = "wired_headset"
	EndpointBluetooth    EndpointType = "bluetooth"
	EndpointStreaming    EndpointType = "streaming"
)

// Endpoint is an audio endpoint as reported by the newer audio API.
type Endpoint struct {
	ID   string       `json:"id"`
	Type EndpointType `json:"type"`
	Name string       `json:"name,omitempty"`
}

// RouteEvent is any platform notification the reconciler consumes.
type RouteEvent interface {
	routeEvent()
}

// BitmaskEvent is the legacy audio state report.
type BitmaskEvent struct {
	Muted            bool
	Route            Route
	SupportedMask    Route
	BluetoothDevices []bluetooth.Device
	ActiveBluetooth  *bluetooth.Device
}

// EndpointsEvent lists the endpoints currently available.
type EndpointsEvent struct {
	Endpoints []Endpoint
}

// EndpointChangedEvent reports the endpoint audio is now routed to.
type EndpointChangedEvent struct {
	Endpoint Endpoint
}

// MuteEvent reports a mute state change.
type MuteEvent struct {
	Muted bool
}

func (BitmaskEvent) routeEvent()         {}
func (EndpointsEvent) routeEvent()       {}
func (EndpointChangedEvent) routeEvent() {}
func (MuteEvent) routeEvent()            {}

// Router issues route changes to the host platform.
type Router interface {
	SetAudioRoute(route Route)
	RequestBluetoothAudio(deviceID string)
	RequestEndpointChange(endpointID string)
}
