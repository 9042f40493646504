package domain

import "sort"

// AudioOutputKind enumerates the audio outputs a connection can route to.
type AudioOutputKind string

const (
	AudioOutputMuted        AudioOutputKind = "muted"
	AudioOutputEarpiece     AudioOutputKind = "earpiece"
	AudioOutputSpeaker      AudioOutputKind = "speaker"
	AudioOutputWiredHeadset AudioOutputKind = "wired_headset"
	AudioOutputBluetooth    AudioOutputKind = "bluetooth"
)

// AudioOutput is a platform-independent audio destination.
// ID and Name are only set for Bluetooth; an empty ID is the anonymous headset.
type AudioOutput struct {
	Kind AudioOutputKind `json:"kind"`
	ID   string          `json:"id,omitempty"`
	Name *string         `json:"name,omitempty"`
}

var (
	Muted        = AudioOutput{Kind: AudioOutputMuted}
	Earpiece     = AudioOutput{Kind: AudioOutputEarpiece}
	Speaker      = AudioOutput{Kind: AudioOutputSpeaker}
	WiredHeadset = AudioOutput{Kind: AudioOutputWiredHeadset}
)

// Bluetooth builds a bluetooth output. A nil name means it could not be resolved.
func Bluetooth(id string, name *string) AudioOutput {
	return AudioOutput{Kind: AudioOutputBluetooth, ID: id, Name: name}
}

// SameDevice compares identity: the kind, plus the identifier for bluetooth.
// Display names never participate.
func (o AudioOutput) SameDevice(other AudioOutput) bool {
	if o.Kind != other.Kind {
		return false
	}
	if o.Kind == AudioOutputBluetooth {
		return o.ID == other.ID
	}
	return true
}

// Equal compares identity and display name.
func (o AudioOutput) Equal(other AudioOutput) bool {
	if !o.SameDevice(other) {
		return false
	}
	switch {
	case o.Name == nil && other.Name == nil:
		return true
	case o.Name == nil || other.Name == nil:
		return false
	default:
		return *o.Name == *other.Name
	}
}

func (o AudioOutput) rank() int {
	switch o.Kind {
	case AudioOutputMuted:
		return 0
	case AudioOutputEarpiece:
		return 1
	case AudioOutputSpeaker:
		return 2
	case AudioOutputWiredHeadset:
		return 3
	default:
		return 4
	}
}

// AudioRouteSet is the current output together with every selectable output.
type AudioRouteSet struct {
	Current   *AudioOutput  `json:"current"`
	Available []AudioOutput `json:"available"`
}

// NormalizeOutputs returns outputs with Muted first, duplicates removed and
// kinds in canonical order. Bluetooth devices keep their relative order.
func NormalizeOutputs(outputs []AudioOutput) []AudioOutput {
	result := make([]AudioOutput, 0, len(outputs)+1)
	result = append(result, Muted)
	for _, o := range outputs {
		if containsDevice(result, o) {
			continue
		}
		result = append(result, o)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].rank() < result[j].rank()
	})
	return result
}

// EqualOutputs compares two output lists element by element.
func EqualOutputs(a, b []AudioOutput) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// EqualOutputPtr compares two optional outputs.
func EqualOutputPtr(a, b *AudioOutput) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func containsDevice(outputs []AudioOutput, o AudioOutput) bool {
	for _, existing := range outputs {
		if existing.SameDevice(o) {
			return true
		}
	}
	return false
}
