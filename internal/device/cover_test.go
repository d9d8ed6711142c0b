package device

import (
	"context"
	"errors"
	"testing"

	"github.com/fisaks/fieldhub/internal/codec"
	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/projection"
)

// fakeRegs records register traffic and serves canned reads.
type fakeRegs struct {
	holding map[uint16][]uint16 // addr => words served on read
	coils   map[uint16]bool

	writes     []regWrite
	coilWrites []coilWrite
	readErr    error
	writeErr   error
}

type regWrite struct {
	addr  uint16
	words []uint16
}

type coilWrite struct {
	addr uint16
	on   bool
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{holding: map[uint16][]uint16{}, coils: map[uint16]bool{}}
}

func (f *fakeRegs) ReadHoldingRegisters(_ context.Context, addr, count uint16) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	words, ok := f.holding[addr]
	if !ok || len(words) != int(count) {
		return nil, errors.New("fake: no canned registers at address")
	}
	return codec.Encode(words, codec.Little), nil
}

func (f *fakeRegs) WriteRegisters(_ context.Context, addr uint16, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	words, err := codec.Decode(data, codec.Little, len(data)/2)
	if err != nil {
		return err
	}
	f.writes = append(f.writes, regWrite{addr: addr, words: words})
	return nil
}

func (f *fakeRegs) ReadCoil(_ context.Context, addr uint16) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.coils[addr], nil
}

func (f *fakeRegs) WriteCoil(_ context.Context, addr uint16, on bool) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.coilWrites = append(f.coilWrites, coilWrite{addr: addr, on: on})
	f.coils[addr] = on
	return nil
}

func coverConfig(t *testing.T) *config.DeviceConfig {
	t.Helper()
	cfg := &config.DeviceConfig{
		Name: "blind1", Kind: config.KindCover,
		StatusAddr: 0, RequestAddr: 10,
	}
	return cfg
}

func TestCoverRead(t *testing.T) {
	regs := newFakeRegs()
	regs.holding[0] = []uint16{projection.StatusStandby, 0, 0}

	cover, err := NewCover(coverConfig(t), regs)
	if err != nil {
		t.Fatal(err)
	}
	st, err := cover.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Cover == nil {
		t.Fatal("cover state missing")
	}
	if st.Cover.Motion != projection.MotionStandby || st.Cover.Position != 0 {
		t.Errorf("state = %+v", st.Cover)
	}
	if st.Closed == nil || !*st.Closed {
		t.Error("standby at position 0 must read as closed")
	}
}

func TestCoverReadDriveEcho(t *testing.T) {
	// The request code echoed in the status register reads as movement.
	regs := newFakeRegs()
	regs.holding[0] = []uint16{projection.StatusClose, 0, 0}

	cover, _ := NewCover(coverConfig(t), regs)
	st, err := cover.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Cover.Motion != projection.MotionClosing {
		t.Errorf("motion = %v, want closing", st.Cover.Motion)
	}
}

func TestCoverSetPositionSingleWrite(t *testing.T) {
	regs := newFakeRegs()
	cover, _ := NewCover(coverConfig(t), regs)

	pos, tilt := 50, 75
	prev := hub.DeviceState{Cover: &projection.CoverState{Motion: projection.MotionStandby}}
	st, err := cover.Write(context.Background(),
		hub.Command{Action: hub.ActionSetPosition, Position: &pos, Tilt: &tilt}, prev)
	if err != nil {
		t.Fatal(err)
	}

	if len(regs.writes) != 1 {
		t.Fatalf("want exactly one register write, got %d", len(regs.writes))
	}
	w := regs.writes[0]
	if w.addr != 10 {
		t.Errorf("write addr = %d, want request block at 10", w.addr)
	}
	want := []uint16{projection.StatusSet, 128, 191}
	if len(w.words) != 3 || w.words[0] != want[0] || w.words[1] != want[1] || w.words[2] != want[2] {
		t.Errorf("write block = %v, want %v", w.words, want)
	}

	if st.Cover.Position != 50 || st.Cover.Tilt != 75 || st.Cover.Motion != projection.MotionSetting {
		t.Errorf("intent state = %+v", st.Cover)
	}
}

func TestCoverSetPositionKeepsOtherAxis(t *testing.T) {
	regs := newFakeRegs()
	cover, _ := NewCover(coverConfig(t), regs)

	pos := 30
	prev := hub.DeviceState{Cover: &projection.CoverState{Position: 80, Tilt: 40}}
	_, err := cover.Write(context.Background(),
		hub.Command{Action: hub.ActionSetPosition, Position: &pos}, prev)
	if err != nil {
		t.Fatal(err)
	}
	w := regs.writes[0]
	if w.words[1] != 77 { // round(30*2.55)
		t.Errorf("position raw = %d, want 77", w.words[1])
	}
	if w.words[2] != 102 { // tilt kept at 40 percent
		t.Errorf("tilt raw = %d, want 102", w.words[2])
	}
}

func TestCoverActions(t *testing.T) {
	tests := []struct {
		action string
		code   uint16
		motion projection.Motion
	}{
		{hub.ActionOpen, projection.StatusOpen, projection.MotionOpening},
		{hub.ActionClose, projection.StatusClose, projection.MotionClosing},
		{hub.ActionStop, projection.StatusStandby, projection.MotionStandby},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			regs := newFakeRegs()
			cover, _ := NewCover(coverConfig(t), regs)

			st, err := cover.Write(context.Background(), hub.Command{Action: tt.action}, hub.DeviceState{})
			if err != nil {
				t.Fatal(err)
			}
			if len(regs.writes) != 1 || len(regs.writes[0].words) != 1 || regs.writes[0].words[0] != tt.code {
				t.Errorf("writes = %+v, want single code %d", regs.writes, tt.code)
			}
			if st.Cover.Motion != tt.motion {
				t.Errorf("motion = %v, want %v", st.Cover.Motion, tt.motion)
			}
		})
	}
}

func TestCoverWriteFailureKeepsPrev(t *testing.T) {
	regs := newFakeRegs()
	regs.writeErr = errors.New("bus gone")
	cover, _ := NewCover(coverConfig(t), regs)

	prev := hub.DeviceState{Cover: &projection.CoverState{Position: 80}}
	st, err := cover.Write(context.Background(), hub.Command{Action: hub.ActionOpen}, prev)
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Cover == nil || st.Cover.Position != 80 {
		t.Errorf("failed write must return prev state, got %+v", st)
	}
}

func TestCoverRejectsBadCommands(t *testing.T) {
	regs := newFakeRegs()
	cover, _ := NewCover(coverConfig(t), regs)

	if _, err := cover.Write(context.Background(), hub.Command{Action: "warp"}, hub.DeviceState{}); err == nil {
		t.Error("unknown action must fail")
	}
	if _, err := cover.Write(context.Background(), hub.Command{Action: hub.ActionSetPosition}, hub.DeviceState{}); err == nil {
		t.Error("setPosition without values must fail")
	}
	if len(regs.writes) != 0 {
		t.Errorf("rejected commands must not touch the bus: %+v", regs.writes)
	}
}
