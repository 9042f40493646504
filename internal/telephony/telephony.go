package telephony

import (
	"context"
	"errors"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/domain"
)

// ErrRegistrationRejected is returned when the platform refuses a new connection.
var ErrRegistrationRejected = errors.New("telephony: registration rejected")

// Presentation controls how the remote address is displayed.
type Presentation int

const (
	PresentationAllowed Presentation = iota + 1
	PresentationRestricted
	PresentationUnknown
)

// Property flags of a connection.
type Property int

const (
	PropertySelfManaged Property = 1 << 7
)

// Capability flags of a connection.
type Capability int

const (
	CapabilityHold        Capability = 1 << 0
	CapabilitySupportHold Capability = 1 << 1
	CapabilityMute        Capability = 1 << 6
)

// DefaultCapabilities are advertised by every connection.
const DefaultCapabilities = CapabilityMute | CapabilityHold | CapabilitySupportHold

// Request carries what the platform needs to create a connection.
type Request struct {
	Address   string
	Extras    map[string]string
	Direction domain.Direction
	AccountID string
}

// Handle is the platform-side connection object. Implementations must be safe
// for concurrent use.
type Handle interface {
	audio.Router

	SetInitializing()
	SetAddress(address string, presentation Presentation)
	SetProperties(props Property)
	SetAudioModeIsVoIP(voip bool)
	SetCapabilities(caps Capability)
	SetExtras(extras map[string]string)

	SetActive()
	SetDisconnected(cause domain.DisconnectCause)
	Destroy()
}

// Registrar registers connections with the platform telephony service.
type Registrar interface {
	Register(ctx context.Context, req Request) (Handle, error)
}
