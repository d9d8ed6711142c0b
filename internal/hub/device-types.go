// Package hub holds the shared device model: snapshots, availability,
// commands and the publisher/subscriber contracts between the pollers
// and the messaging layer.
package hub

import (
	"context"
	"time"

	"github.com/fisaks/fieldhub/internal/projection"
)

// Availability is the per-device liveness flag, distinct from the last
// known value. A device starts out unknown until its first successful
// poll cycle.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// DeviceState is the entity-facing value set of one device. Exactly one
// of the kind fields is set, matching the device's configured kind.
type DeviceState struct {
	Cover   *projection.CoverState   `json:"cover,omitempty"`
	Light   *projection.LightState   `json:"light,omitempty"`
	Climate *projection.ClimateState `json:"climate,omitempty"`

	// Closed is the policy-applied closed flag for covers.
	Closed *bool `json:"closed,omitempty"`
}

func (s DeviceState) Equal(o DeviceState) bool {
	return ptrEqual(s.Cover, o.Cover) &&
		ptrEqual(s.Light, o.Light) &&
		ptrEqual(s.Climate, o.Climate) &&
		ptrEqual(s.Closed, o.Closed)
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot pairs the projected state with its availability. The two are
// only ever updated together; a failed cycle flips availability and
// leaves the state at its last known value.
type Snapshot struct {
	Device       string       `json:"device"`
	State        DeviceState  `json:"state"`
	Availability Availability `json:"availability"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Command actions accepted over MQTT.
const (
	ActionOpen           = "open"
	ActionClose          = "close"
	ActionStop           = "stop"
	ActionSetPosition    = "setPosition"
	ActionTurnOn         = "turnOn"
	ActionTurnOff        = "turnOff"
	ActionSetTemperature = "setTemperature"
)

// Command is a write request for one device. Position and Tilt given
// together form a single composite command; the device applies them in
// one write.
type Command struct {
	ID          string   `json:"id,omitempty"`
	Device      string   `json:"device,omitempty"` // overridden by topic
	Action      string   `json:"action"`
	Position    *int     `json:"position,omitempty"`
	Tilt        *int     `json:"tilt,omitempty"`
	Brightness  *int     `json:"brightness,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type StatePublisher interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
}

type CommandSubscriber interface {
	OnDeviceCommand(ctx context.Context, cmd Command) error
}
