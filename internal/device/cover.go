package device

import (
	"context"
	"fmt"

	"github.com/fisaks/fieldhub/internal/codec"
	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/projection"
	"github.com/fisaks/fieldhub/internal/transport"
)

// RegisterReadWriter is the slice of the register client a modbus
// adapter needs; tests substitute fakes.
type RegisterReadWriter interface {
	ReadHoldingRegisters(ctx context.Context, addr, count uint16) ([]byte, error)
	WriteRegisters(ctx context.Context, addr uint16, data []byte) error
	ReadCoil(ctx context.Context, addr uint16) (bool, error)
	WriteCoil(ctx context.Context, addr uint16, on bool) error
}

// Cover drives an OSCAT-style blind controller: three holding registers
// [status, position, tilt] at the current-status address, commands
// written to the request-status address.
type Cover struct {
	name        string
	regs        RegisterReadWriter
	statusAddr  uint16
	requestAddr uint16
	order       codec.ByteOrder
	tiltGated   bool
}

func NewCover(cfg *config.DeviceConfig, regs RegisterReadWriter) (*Cover, error) {
	order, err := codec.ParseByteOrder(cfg.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", cfg.Name, err)
	}
	return &Cover{
		name:        cfg.Name,
		regs:        regs,
		statusAddr:  cfg.StatusAddr,
		requestAddr: cfg.RequestAddr,
		order:       order,
		tiltGated:   cfg.TiltGated(),
	}, nil
}

func (c *Cover) Read(ctx context.Context) (hub.DeviceState, error) {
	buf, err := c.regs.ReadHoldingRegisters(ctx, c.statusAddr, 3)
	if err != nil {
		return hub.DeviceState{}, err
	}
	words, err := codec.Decode(buf, c.order, 3)
	if err != nil {
		return hub.DeviceState{}, err
	}
	st := projection.ProjectCover([3]uint16(words))
	return c.stateOf(st), nil
}

func (c *Cover) stateOf(st projection.CoverState) hub.DeviceState {
	closed := st.IsClosed(c.tiltGated)
	return hub.DeviceState{Cover: &st, Closed: &closed}
}

func (c *Cover) Write(ctx context.Context, cmd hub.Command, prev hub.DeviceState) (hub.DeviceState, error) {
	var intent projection.CoverState
	if prev.Cover != nil {
		intent = *prev.Cover
	}

	var words []uint16
	switch cmd.Action {
	case hub.ActionOpen:
		words = projection.PackCoverAction(projection.StatusOpen)
		intent.Motion = projection.MotionOpening
	case hub.ActionClose:
		words = projection.PackCoverAction(projection.StatusClose)
		intent.Motion = projection.MotionClosing
	case hub.ActionStop:
		words = projection.PackCoverAction(projection.StatusStandby)
		intent.Motion = projection.MotionStandby
	case hub.ActionSetPosition:
		if cmd.Position == nil && cmd.Tilt == nil {
			return prev, fmt.Errorf("device %s: setPosition needs a position or tilt", c.name)
		}
		position := intent.Position
		tilt := intent.Tilt
		if cmd.Position != nil {
			position = clampPercent(*cmd.Position)
		}
		if cmd.Tilt != nil {
			tilt = clampPercent(*cmd.Tilt)
		}
		// Both targets go out in one request block so the device
		// applies them together.
		words = projection.PackCoverTarget(position, tilt)
		intent.Motion = projection.MotionSetting
		intent.Position = position
		intent.Tilt = tilt
	default:
		return prev, fmt.Errorf("device %s: unsupported action %q", c.name, cmd.Action)
	}

	if err := c.regs.WriteRegisters(ctx, c.requestAddr, codec.Encode(words, c.order)); err != nil {
		return prev, err
	}
	// The controller does not echo a confirmed value; assume the intent
	// until the next poll cycle reads the real status back.
	return c.stateOf(intent), nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

var _ Adapter = (*Cover)(nil)
var _ RegisterReadWriter = (*transport.RegisterClient)(nil)
