package projection

// OSCAT blind-control status codes, shared by the current-status and
// request-status registers.
const (
	StatusOpening uint16 = 121
	StatusClosing uint16 = 122
	StatusStandby uint16 = 131
	StatusOpen    uint16 = 134
	StatusClose   uint16 = 135
	StatusSet     uint16 = 136
)

// Motion is the entity-facing movement state of a cover.
type Motion int

const (
	MotionUnknown Motion = iota
	MotionStandby
	MotionOpening
	MotionClosing
	MotionSetting
)

func (m Motion) String() string {
	switch m {
	case MotionStandby:
		return "standby"
	case MotionOpening:
		return "opening"
	case MotionClosing:
		return "closing"
	case MotionSetting:
		return "setting"
	default:
		return "unknown"
	}
}

func (m Motion) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// MotionOf maps a raw status code onto a Motion. The command-request
// codes (open/close/set) indicate movement in progress when echoed back
// in the status register. Codes outside the table are MotionUnknown.
func MotionOf(status uint16) Motion {
	switch status {
	case StatusStandby:
		return MotionStandby
	case StatusOpening, StatusOpen:
		return MotionOpening
	case StatusClosing, StatusClose:
		return MotionClosing
	case StatusSet:
		return MotionSetting
	default:
		return MotionUnknown
	}
}

// CoverState is the projected state of one cover.
type CoverState struct {
	Motion   Motion `json:"motion"`
	Position int    `json:"position"` // 0 closed .. 100 open
	Tilt     int    `json:"tilt"`     // 0 .. 100
}

// ProjectCover decodes the three-register block [status, position, tilt]
// read from the current-status address.
func ProjectCover(regs [3]uint16) CoverState {
	return CoverState{
		Motion:   MotionOf(regs[0]),
		Position: ScaleTo100(regs[1]),
		Tilt:     ScaleTo100(regs[2]),
	}
}

// IsClosed reports whether the cover counts as closed. When tiltGated
// is set the tilt must additionally be below 2 percent; installations
// disagree on that rule, so it is policy, not a universal invariant.
func (s CoverState) IsClosed(tiltGated bool) bool {
	if s.Position != 0 {
		return false
	}
	if tiltGated {
		return s.Tilt < 2
	}
	return true
}

// PackCoverTarget builds the single combined request block that moves a
// cover to position and tilt (both 0-100). Both targets travel in one
// write so the device applies them together.
func PackCoverTarget(position, tilt int) []uint16 {
	return []uint16{StatusSet, ScaleTo255(position), ScaleTo255(tilt)}
}

// PackCoverAction builds the one-register request block for open, close
// and stop commands.
func PackCoverAction(status uint16) []uint16 { return []uint16{status} }
