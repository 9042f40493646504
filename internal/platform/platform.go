package platform

// Level is the API generation of the host telephony platform.
type Level int

const (
	AnsweredElsewhereLevel          Level = 25
	BluetoothDeviceListLevel        Level = 28
	BluetoothConnectPermissionLevel Level = 31
	CallEndpointLevel               Level = 34
)

// SupportsAnsweredElsewhere reports whether the platform has a dedicated
// "answered elsewhere" disconnect cause.
func (l Level) SupportsAnsweredElsewhere() bool {
	return l >= AnsweredElsewhereLevel
}

// SupportsBluetoothDeviceList reports whether bitmask audio state carries the
// connected bluetooth devices.
func (l Level) SupportsBluetoothDeviceList() bool {
	return l >= BluetoothDeviceListLevel
}

// RequiresBluetoothConnectPermission reports whether device names are hidden
// unless the bluetooth connect permission is granted.
func (l Level) RequiresBluetoothConnectPermission() bool {
	return l >= BluetoothConnectPermissionLevel
}

// SupportsCallEndpoints reports whether audio routing uses the endpoint API.
func (l Level) SupportsCallEndpoints() bool {
	return l >= CallEndpointLevel
}

// Permission names a runtime permission of the host platform.
type Permission string

const (
	PermissionManageOwnCalls   Permission = "manage_own_calls"
	PermissionReadPhoneNumbers Permission = "read_phone_numbers"
	PermissionBluetoothConnect Permission = "bluetooth_connect"
)

// Permissions answers runtime permission checks.
type Permissions interface {
	Granted(p Permission) bool
}

// StaticPermissions is a fixed permission set, usually built from configuration.
type StaticPermissions map[Permission]bool

// NewStaticPermissions grants the named permissions. Unknown names are kept as-is.
func NewStaticPermissions(names ...string) StaticPermissions {
	perms := make(StaticPermissions, len(names))
	for _, name := range names {
		perms[Permission(name)] = true
	}
	return perms
}

// Granted implements Permissions.
func (p StaticPermissions) Granted(perm Permission) bool {
	return p[perm]
}
