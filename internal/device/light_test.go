package device

import (
	"context"
	"testing"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
)

func lightConfig(t *testing.T, dimmable bool) *config.DeviceConfig {
	t.Helper()
	cfg := &config.DeviceConfig{
		Name: "spot1", Kind: config.KindLight,
		StateCoil:    2,
		Capabilities: []string{"readable", "writable"},
	}
	if dimmable {
		addr := uint16(20)
		cfg.BrightnessAddr = &addr
		cfg.Capabilities = append(cfg.Capabilities, "scalable")
	}
	// Validate resolves capabilities; build a throwaway config around it.
	hubCfg := &config.HubConfig{
		Buses:          []*config.BusConfig{{BusId: "b1", Type: "tcp", TCPAddr: "x:1"}},
		Devices:        []*config.DeviceConfig{cfg},
		PollIntervalMs: 100,
	}
	cfg.BusId = "b1"
	cfg.UnitId = 1
	if err := hubCfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func TestLightReadPlainSwitch(t *testing.T) {
	regs := newFakeRegs()
	regs.coils[2] = true

	light, err := NewLight(lightConfig(t, false), regs)
	if err != nil {
		t.Fatal(err)
	}
	st, err := light.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Light == nil || !st.Light.On || st.Light.Brightness != 0 {
		t.Errorf("state = %+v", st.Light)
	}
}

func TestLightReadDimmable(t *testing.T) {
	regs := newFakeRegs()
	regs.coils[2] = true
	regs.holding[20] = []uint16{200}

	light, _ := NewLight(lightConfig(t, true), regs)
	st, err := light.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Light.On || st.Light.Brightness != 200 {
		t.Errorf("state = %+v", st.Light)
	}
}

func TestLightTurnOnWithBrightness(t *testing.T) {
	regs := newFakeRegs()
	light, _ := NewLight(lightConfig(t, true), regs)

	b := 300 // clamped to 255
	st, err := light.Write(context.Background(), hub.Command{Action: hub.ActionTurnOn, Brightness: &b}, hub.DeviceState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(regs.writes) != 1 || regs.writes[0].addr != 20 || regs.writes[0].words[0] != 255 {
		t.Errorf("brightness writes = %+v", regs.writes)
	}
	if len(regs.coilWrites) != 1 || regs.coilWrites[0].addr != 2 || !regs.coilWrites[0].on {
		t.Errorf("coil writes = %+v", regs.coilWrites)
	}
	if !st.Light.On || st.Light.Brightness != 255 {
		t.Errorf("intent = %+v", st.Light)
	}
}

func TestLightTurnOffIgnoresBrightnessRegister(t *testing.T) {
	regs := newFakeRegs()
	light, _ := NewLight(lightConfig(t, true), regs)

	st, err := light.Write(context.Background(), hub.Command{Action: hub.ActionTurnOff}, hub.DeviceState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(regs.writes) != 0 {
		t.Errorf("turnOff must not write registers: %+v", regs.writes)
	}
	if len(regs.coilWrites) != 1 || regs.coilWrites[0].on {
		t.Errorf("coil writes = %+v", regs.coilWrites)
	}
	if st.Light.On {
		t.Error("intent must be off")
	}
}

func TestSwitchIgnoresBrightnessCommand(t *testing.T) {
	regs := newFakeRegs()
	light, _ := NewLight(lightConfig(t, false), regs)

	b := 100
	_, err := light.Write(context.Background(), hub.Command{Action: hub.ActionTurnOn, Brightness: &b}, hub.DeviceState{})
	if err != nil {
		t.Fatal(err)
	}
	if len(regs.writes) != 0 {
		t.Errorf("plain switch must never write a brightness register: %+v", regs.writes)
	}
}
