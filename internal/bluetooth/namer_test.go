package bluetooth

import (
	"testing"

	"github.com/acme/call-connection/internal/platform"
)

func TestResolveNameVisibility(t *testing.T) {
	device := Device{Address: "AA:BB", Name: "Car Kit"}

	cases := []struct {
		name     string
		level    platform.Level
		granted  bool
		wantName bool
	}{
		{"granted on recent level", 31, true, true},
		{"granted on old level", 28, true, true},
		{"not granted below permission level", 30, false, true},
		{"not granted at permission level", 31, false, false},
		{"not granted above permission level", 34, false, false},
	}

	for _, tc := range cases {
		perms := platform.StaticPermissions{}
		if tc.granted {
			perms[platform.PermissionBluetoothConnect] = true
		}
		out := NewNamer(tc.level, perms).Resolve(device)

		if out.ID != device.Address {
			t.Errorf("%s: expected id %q, got %q", tc.name, device.Address, out.ID)
		}
		if tc.wantName {
			if out.Name == nil || *out.Name != device.Name {
				t.Errorf("%s: expected name %q, got %v", tc.name, device.Name, out.Name)
			}
		} else if out.Name != nil {
			t.Errorf("%s: expected no name, got %q", tc.name, *out.Name)
		}
	}
}

func TestResolveEmptyNameIsNil(t *testing.T) {
	namer := NewNamer(34, platform.NewStaticPermissions(string(platform.PermissionBluetoothConnect)))
	out := namer.Resolve(Device{Address: "CC:DD"})
	if out.Name != nil {
		t.Fatalf("expected nil name for unnamed device, got %q", *out.Name)
	}
}

func TestResolveIdentityIgnoresName(t *testing.T) {
	withName := NewNamer(34, platform.NewStaticPermissions(string(platform.PermissionBluetoothConnect))).Resolve(Device{Address: "AA", Name: "x"})
	withoutName := NewNamer(34, nil).Resolve(Device{Address: "AA", Name: "x"})
	if !withName.SameDevice(withoutName) {
		t.Fatalf("expected outputs with the same address to be the same device")
	}
	if withName.Equal(withoutName) {
		t.Fatalf("expected display names to differ")
	}
}
