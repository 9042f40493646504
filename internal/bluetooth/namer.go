// Package bluetooth resolves bluetooth devices into audio outputs.
package bluetooth

import (
	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/platform"
)

// Device is a bluetooth device as reported by the host platform.
type Device struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Namer produces bluetooth audio outputs, hiding device names when the
// platform requires a permission that was not granted.
type Namer struct {
	level       platform.Level
	permissions platform.Permissions
}

// NewNamer builds a namer for the given platform level.
func NewNamer(level platform.Level, permissions platform.Permissions) *Namer {
	if permissions == nil {
		permissions = platform.StaticPermissions{}
	}
	return &Namer{level: level, permissions: permissions}
}

// Resolve maps a device to a bluetooth output keyed by its address.
func (n *Namer) Resolve(device Device) domain.AudioOutput {
	return domain.Bluetooth(device.Address, n.name(device))
}

func (n *Namer) name(device Device) *string {
	if device.Name == "" {
		return nil
	}
	// Below the permission level names stay readable even without the grant.
	if !n.permissions.Granted(platform.PermissionBluetoothConnect) && n.level.RequiresBluetoothConnectPermission() {
		return nil
	}
	name := device.Name
	return &name
}
