package projection

// LightState is the projected state of one light or switch.
type LightState struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness,omitempty"` // raw 0-255, 0 when not dimmable
}

// ProjectLight combines the state coil with an optional brightness
// register. Callers pass hasBrightness=false for plain switches.
func ProjectLight(coil uint16, brightness uint16, hasBrightness bool) LightState {
	s := LightState{On: BitToBool(coil)}
	if hasBrightness {
		s.Brightness = int(brightness)
	}
	return s
}

// ClampBrightness bounds a commanded brightness to the raw 0-255 range.
func ClampBrightness(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint16(v)
}
