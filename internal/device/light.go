package device

import (
	"context"
	"fmt"

	"github.com/fisaks/fieldhub/internal/codec"
	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/projection"
)

// Light drives a coil-switched light, optionally with a 0-255
// brightness holding register. A plain switch is a Light without the
// brightness register.
type Light struct {
	name           string
	regs           RegisterReadWriter
	stateCoil      uint16
	brightnessAddr *uint16
	order          codec.ByteOrder
	dimmable       bool
}

func NewLight(cfg *config.DeviceConfig, regs RegisterReadWriter) (*Light, error) {
	order, err := codec.ParseByteOrder(cfg.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", cfg.Name, err)
	}
	return &Light{
		name:           cfg.Name,
		regs:           regs,
		stateCoil:      cfg.StateCoil,
		brightnessAddr: cfg.BrightnessAddr,
		order:          order,
		dimmable:       cfg.BrightnessAddr != nil && cfg.Caps().Has(config.CapScalable),
	}, nil
}

func (l *Light) Read(ctx context.Context) (hub.DeviceState, error) {
	on, err := l.regs.ReadCoil(ctx, l.stateCoil)
	if err != nil {
		return hub.DeviceState{}, err
	}
	st := projection.LightState{On: on}
	if l.dimmable {
		buf, err := l.regs.ReadHoldingRegisters(ctx, *l.brightnessAddr, 1)
		if err != nil {
			return hub.DeviceState{}, err
		}
		words, err := codec.Decode(buf, l.order, 1)
		if err != nil {
			return hub.DeviceState{}, err
		}
		st.Brightness = int(words[0])
	}
	return hub.DeviceState{Light: &st}, nil
}

func (l *Light) Write(ctx context.Context, cmd hub.Command, prev hub.DeviceState) (hub.DeviceState, error) {
	var intent projection.LightState
	if prev.Light != nil {
		intent = *prev.Light
	}

	switch cmd.Action {
	case hub.ActionTurnOn:
		if l.dimmable && cmd.Brightness != nil {
			raw := projection.ClampBrightness(*cmd.Brightness)
			data := codec.Encode([]uint16{raw}, l.order)
			if err := l.regs.WriteRegisters(ctx, *l.brightnessAddr, data); err != nil {
				return prev, err
			}
			intent.Brightness = int(raw)
		}
		if err := l.regs.WriteCoil(ctx, l.stateCoil, true); err != nil {
			return prev, err
		}
		intent.On = true
	case hub.ActionTurnOff:
		if err := l.regs.WriteCoil(ctx, l.stateCoil, false); err != nil {
			return prev, err
		}
		intent.On = false
	default:
		return prev, fmt.Errorf("device %s: unsupported action %q", l.name, cmd.Action)
	}
	return hub.DeviceState{Light: &intent}, nil
}

var _ Adapter = (*Light)(nil)
