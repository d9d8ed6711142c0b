// Package projection maps decoded raw register values into the
// entity-facing representation and back. Everything here is a pure
// function; unmapped inputs project to an explicit unknown marker.
package projection

import "math"

// Range is an inclusive value range used for linear rescaling.
type Range struct {
	Min float64
	Max float64
}

func (r Range) span() float64 { return r.Max - r.Min }

var (
	Percent = Range{0, 100}
	Byte255 = Range{0, 255}
)

// Scale linearly rescales v from one range onto another, clamped to the
// target range. Round-trips are exact within one unit of the smaller range.
func Scale(v float64, from, to Range) float64 {
	scaled := (v-from.Min)*to.span()/from.span() + to.Min
	return math.Min(to.Max, math.Max(to.Min, scaled))
}

// ScaleTo255 rescales a 0-100 percentage onto the raw 0-255 range,
// rounded to the nearest integer.
func ScaleTo255(percent int) uint16 {
	return uint16(math.Round(Scale(float64(percent), Percent, Byte255)))
}

// ScaleTo100 rescales a raw 0-255 value onto 0-100 percent.
func ScaleTo100(raw uint16) int {
	return int(math.Round(Scale(float64(raw), Byte255, Percent)))
}

// BitToBool projects the lowest bit of a decoded field.
func BitToBool(v uint16) bool { return v&0x01 != 0 }
