package audio

import (
	"errors"
	"testing"

	"github.com/acme/call-connection/internal/bluetooth"
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
)

const callActivity = "com.example.CallActivity"

type recordingRouter struct {
	routes    []Route
	bluetooth []string
	endpoints []string
}

func (r *recordingRouter) SetAudioRoute(route Route)       { r.routes = append(r.routes, route) }
func (r *recordingRouter) RequestBluetoothAudio(id string) { r.bluetooth = append(r.bluetooth, id) }
func (r *recordingRouter) RequestEndpointChange(id string) { r.endpoints = append(r.endpoints, id) }

func newForegroundReconciler(level platform.Level, perms platform.Permissions) *Reconciler {
	r := NewReconciler(level, bluetooth.NewNamer(level, perms), callActivity, nil)
	r.ActivityResumed(callActivity)
	return r
}

func kinds(outputs []domain.AudioOutput) []domain.AudioOutputKind {
	result := make([]domain.AudioOutputKind, 0, len(outputs))
	for _, o := range outputs {
		result = append(result, o.Kind)
	}
	return result
}

func expectKinds(t *testing.T, got []domain.AudioOutput, want ...domain.AudioOutputKind) {
	t.Helper()
	gotKinds := kinds(got)
	if len(gotKinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotKinds)
	}
	for i := range want {
		if gotKinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotKinds)
		}
	}
}

func expectCurrent(t *testing.T, r *Reconciler, want *domain.AudioOutput) {
	t.Helper()
	got, _ := r.Current().Get()
	if !domain.EqualOutputPtr(got, want) {
		t.Fatalf("expected current %+v, got %+v", want, got)
	}
}

func ptr(o domain.AudioOutput) *domain.AudioOutput { return &o }

func TestBitmaskSpeakerAndWiredHeadset(t *testing.T) {
	r := newForegroundReconciler(30, nil)
	r.Apply(BitmaskEvent{Route: RouteSpeaker, SupportedMask: RouteSpeaker | RouteWiredHeadset})

	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputSpeaker, domain.AudioOutputWiredHeadset)
	expectCurrent(t, r, ptr(domain.Speaker))
}

func TestBitmaskWiredHeadsetHidesEarpiece(t *testing.T) {
	r := newForegroundReconciler(30, nil)
	r.Apply(BitmaskEvent{Route: RouteWiredHeadset, SupportedMask: RouteWiredHeadset | RouteEarpiece})

	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputWiredHeadset)
	expectCurrent(t, r, ptr(domain.WiredHeadset))
}

func TestBitmaskEmptyMaskOffersOnlyMuted(t *testing.T) {
	r := newForegroundReconciler(30, nil)
	r.Apply(BitmaskEvent{})

	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted)
	expectCurrent(t, r, nil)
}

func TestBitmaskAnonymousBluetoothBelowDeviceListLevel(t *testing.T) {
	r := newForegroundReconciler(27, nil)
	r.Apply(BitmaskEvent{
		Route:            RouteBluetooth,
		SupportedMask:    RouteBluetooth | RouteEarpiece,
		BluetoothDevices: []bluetooth.Device{{Address: "AA", Name: "Headset"}},
	})

	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputEarpiece, domain.AudioOutputBluetooth)
	if bt := available[2]; bt.ID != "" || bt.Name != nil {
		t.Fatalf("expected anonymous bluetooth output, got %+v", bt)
	}
	expectCurrent(t, r, ptr(domain.Bluetooth("", nil)))
}

func TestBitmaskBluetoothDevicesInPlatformOrder(t *testing.T) {
	perms := platform.NewStaticPermissions(string(platform.PermissionBluetoothConnect))
	r := newForegroundReconciler(31, perms)
	active := bluetooth.Device{Address: "BB", Name: "Car"}
	r.Apply(BitmaskEvent{
		Route:            RouteBluetooth,
		SupportedMask:    RouteBluetooth | RouteSpeaker | RouteEarpiece,
		BluetoothDevices: []bluetooth.Device{{Address: "CC", Name: "Buds"}, active, {Address: "CC", Name: "Buds"}},
		ActiveBluetooth:  &active,
	})

	available, _ := r.Available().Get()
	expectKinds(t, available,
		domain.AudioOutputMuted,
		domain.AudioOutputEarpiece,
		domain.AudioOutputSpeaker,
		domain.AudioOutputBluetooth,
		domain.AudioOutputBluetooth,
	)
	if available[3].ID != "CC" || available[4].ID != "BB" {
		t.Fatalf("expected bluetooth devices in platform order without duplicates, got %+v", available[3:])
	}
	current, _ := r.Current().Get()
	if current == nil || current.ID != "BB" || current.Name == nil || *current.Name != "Car" {
		t.Fatalf("expected active device as current, got %+v", current)
	}
}

func TestBitmaskBluetoothNameHiddenWithoutPermission(t *testing.T) {
	r := newForegroundReconciler(31, nil)
	r.Apply(BitmaskEvent{
		SupportedMask:    RouteBluetooth,
		BluetoothDevices: []bluetooth.Device{{Address: "AA", Name: "Buds"}},
	})

	available, _ := r.Available().Get()
	if bt := available[1]; bt.ID != "AA" || bt.Name != nil {
		t.Fatalf("expected nameless device, got %+v", bt)
	}
}

func TestMutedIsFirstAndUnique(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{
		{ID: "bt", Type: EndpointBluetooth, Name: "Buds"},
		{ID: "spk", Type: EndpointSpeaker},
		{ID: "ear", Type: EndpointEarpiece},
		{ID: "spk2", Type: EndpointSpeaker},
	}})

	available, _ := r.Available().Get()
	expectKinds(t, available,
		domain.AudioOutputMuted,
		domain.AudioOutputEarpiece,
		domain.AudioOutputSpeaker,
		domain.AudioOutputBluetooth,
	)
}

func TestEndpointUnknownTypesAreDropped(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{
		{ID: "x", Type: EndpointUnknown},
		{ID: "s", Type: EndpointStreaming},
		{ID: "w", Type: EndpointWiredHeadset},
	}})
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "x", Type: EndpointUnknown}})

	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputWiredHeadset)
	expectCurrent(t, r, nil)
}

func TestMuteThenUnmuteRestoresLatestRoute(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "spk", Type: EndpointSpeaker}})
	expectCurrent(t, r, ptr(domain.Speaker))

	r.Apply(MuteEvent{Muted: true})
	expectCurrent(t, r, ptr(domain.Muted))

	// The route changes while muted.
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "ear", Type: EndpointEarpiece}})
	expectCurrent(t, r, ptr(domain.Muted))

	r.Apply(MuteEvent{Muted: false})
	expectCurrent(t, r, ptr(domain.Earpiece))
}

func TestBitmaskUnmuteRestoresRoute(t *testing.T) {
	r := newForegroundReconciler(30, nil)
	r.Apply(BitmaskEvent{Muted: true, Route: RouteSpeaker, SupportedMask: RouteSpeaker | RouteEarpiece})
	expectCurrent(t, r, ptr(domain.Muted))

	r.Apply(BitmaskEvent{Muted: false, Route: RouteSpeaker, SupportedMask: RouteSpeaker | RouteEarpiece})
	expectCurrent(t, r, ptr(domain.Speaker))
}

func TestGateClosedSuppressesAvailable(t *testing.T) {
	r := NewReconciler(34, nil, callActivity, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{{ID: "spk", Type: EndpointSpeaker}}})

	if _, ok := r.Available().Get(); ok {
		t.Fatalf("expected no available outputs while backgrounded")
	}

	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "spk", Type: EndpointSpeaker}})
	expectCurrent(t, r, ptr(domain.Speaker))

	r.ActivityResumed("com.example.OtherActivity")
	if _, ok := r.Available().Get(); ok {
		t.Fatalf("expected other activities not to open the gate")
	}

	r.Apply(EndpointsEvent{Endpoints: []Endpoint{{ID: "spk", Type: EndpointSpeaker}, {ID: "ear", Type: EndpointEarpiece}}})
	r.ActivityResumed(callActivity)
	available, ok := r.Available().Get()
	if !ok {
		t.Fatalf("expected available outputs after resume")
	}
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputEarpiece, domain.AudioOutputSpeaker)
}

func TestGateClosesOnPauseAndDestroy(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{{ID: "spk", Type: EndpointSpeaker}}})

	r.ActivityPaused("com.example.OtherActivity")
	if !r.Foreground() {
		t.Fatalf("expected pause of another activity to keep the gate open")
	}

	r.ActivityPaused(callActivity)
	if r.Foreground() {
		t.Fatalf("expected pause to close the gate")
	}
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{{ID: "ear", Type: EndpointEarpiece}}})
	available, _ := r.Available().Get()
	expectKinds(t, available, domain.AudioOutputMuted, domain.AudioOutputSpeaker)

	r.ActivityResumed(callActivity)
	r.ActivityDestroyed(callActivity)
	if r.Foreground() {
		t.Fatalf("expected destroy to close the gate")
	}
}

func TestResumeWithoutAudioStateIsTolerated(t *testing.T) {
	r := NewReconciler(30, nil, callActivity, nil)
	r.ActivityResumed(callActivity)
	if _, ok := r.Available().Get(); ok {
		t.Fatalf("expected nothing published without an audio state")
	}
}

func TestSelectLegacyRoutes(t *testing.T) {
	r := newForegroundReconciler(30, nil)
	device := bluetooth.Device{Address: "AA", Name: "Buds"}
	r.Apply(BitmaskEvent{Route: RouteEarpiece, SupportedMask: RouteEarpiece | RouteSpeaker | RouteBluetooth, BluetoothDevices: []bluetooth.Device{device}})

	router := &recordingRouter{}
	if err := r.Select(domain.Speaker, router); err != nil {
		t.Fatalf("select speaker: %v", err)
	}
	if err := r.Select(domain.Bluetooth("AA", nil), router); err != nil {
		t.Fatalf("select bluetooth: %v", err)
	}
	if err := r.Select(domain.Bluetooth("ZZ", nil), router); !errors.Is(err, ErrUnknownOutput) {
		t.Fatalf("expected ErrUnknownOutput for unknown device, got %v", err)
	}
	if len(router.routes) != 1 || router.routes[0] != RouteSpeaker {
		t.Fatalf("expected speaker route, got %v", router.routes)
	}
	if len(router.bluetooth) != 1 || router.bluetooth[0] != "AA" {
		t.Fatalf("expected bluetooth request for AA, got %v", router.bluetooth)
	}

	if err := r.Select(domain.Muted, router); err != nil {
		t.Fatalf("select muted: %v", err)
	}
	expectCurrent(t, r, ptr(domain.Muted))
}

func TestSelectLegacyBluetoothWithoutDeviceList(t *testing.T) {
	r := newForegroundReconciler(27, nil)
	router := &recordingRouter{}
	if err := r.Select(domain.Bluetooth("", nil), router); err != nil {
		t.Fatalf("select bluetooth: %v", err)
	}
	if len(router.routes) != 1 || router.routes[0] != RouteBluetooth {
		t.Fatalf("expected bluetooth route bit, got %v", router.routes)
	}
}

func TestSelectEndpoint(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{
		{ID: "ear-1", Type: EndpointEarpiece},
		{ID: "bt-1", Type: EndpointBluetooth, Name: "Buds"},
	}})

	router := &recordingRouter{}
	if err := r.Select(domain.Bluetooth("bt-1", nil), router); err != nil {
		t.Fatalf("select bluetooth endpoint: %v", err)
	}
	if err := r.Select(domain.Speaker, router); !errors.Is(err, ErrUnknownOutput) {
		t.Fatalf("expected ErrUnknownOutput for missing endpoint, got %v", err)
	}
	if len(router.endpoints) != 1 || router.endpoints[0] != "bt-1" {
		t.Fatalf("expected endpoint change to bt-1, got %v", router.endpoints)
	}

	if err := r.Select(domain.Muted, router); err != nil {
		t.Fatalf("select muted: %v", err)
	}
	expectCurrent(t, r, ptr(domain.Muted))
}

func TestSelectedMuteClearsOnEndpointChange(t *testing.T) {
	r := newForegroundReconciler(34, nil)
	r.Apply(EndpointsEvent{Endpoints: []Endpoint{
		{ID: "ear", Type: EndpointEarpiece},
		{ID: "spk", Type: EndpointSpeaker},
	}})
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "ear", Type: EndpointEarpiece}})

	router := &recordingRouter{}
	if err := r.Select(domain.Muted, router); err != nil {
		t.Fatalf("select muted: %v", err)
	}
	expectCurrent(t, r, ptr(domain.Muted))

	if err := r.Select(domain.Speaker, router); err != nil {
		t.Fatalf("select speaker: %v", err)
	}
	if len(router.endpoints) != 1 || router.endpoints[0] != "spk" {
		t.Fatalf("expected endpoint change to spk, got %v", router.endpoints)
	}
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "spk", Type: EndpointSpeaker}})
	expectCurrent(t, r, ptr(domain.Speaker))

	// A platform confirmed endpoint also drops a selected mute.
	if err := r.Select(domain.Muted, router); err != nil {
		t.Fatalf("select muted: %v", err)
	}
	r.Apply(EndpointChangedEvent{Endpoint: Endpoint{ID: "ear", Type: EndpointEarpiece}})
	expectCurrent(t, r, ptr(domain.Earpiece))
}
