package projection

import (
	"errors"
	"fmt"
)

// HVACAction is the running operation reported by a thermostat.
type HVACAction int

const (
	HVACUnknown HVACAction = iota
	HVACOff
	HVACIdle
	HVACHeating
)

func (a HVACAction) String() string {
	switch a {
	case HVACOff:
		return "off"
	case HVACIdle:
		return "idle"
	case HVACHeating:
		return "heating"
	default:
		return "unknown"
	}
}

func (a HVACAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ClimateState is the projected state of one REST thermostat.
type ClimateState struct {
	TargetTemp float64    `json:"targetTemp"`
	Fault      bool       `json:"fault"`
	Power      bool       `json:"power"`
	Action     HVACAction `json:"action"`
}

// JSON document keys served by the thermostat parameter endpoint.
const (
	FieldTargetTemp = "targetTemperature"
	FieldFault      = "fault"
	FieldPower      = "power"
	FieldHeating    = "heating"
)

var ErrMissingField = errors.New("missing field")

// ProjectClimate extracts the thermostat state from a decoded JSON
// parameter document. A missing field or an uncoercible value is a
// decode failure; the caller discards the whole cycle.
func ProjectClimate(doc map[string]any) (ClimateState, error) {
	target, err := floatField(doc, FieldTargetTemp)
	if err != nil {
		return ClimateState{}, err
	}
	fault, err := boolField(doc, FieldFault)
	if err != nil {
		return ClimateState{}, err
	}
	power, err := boolField(doc, FieldPower)
	if err != nil {
		return ClimateState{}, err
	}
	heating, err := boolField(doc, FieldHeating)
	if err != nil {
		return ClimateState{}, err
	}

	s := ClimateState{TargetTemp: target, Fault: fault, Power: power}
	switch {
	case fault || !power:
		s.Action = HVACOff
	case heating:
		s.Action = HVACHeating
	default:
		s.Action = HVACIdle
	}
	return s, nil
}

func floatField(doc map[string]any, key string) (float64, error) {
	raw, ok := doc[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("field %s: cannot coerce %T to float", key, raw)
	}
}

func boolField(doc map[string]any, key string) (bool, error) {
	raw, ok := doc[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("field %s: cannot coerce %T to bool", key, raw)
	}
}
