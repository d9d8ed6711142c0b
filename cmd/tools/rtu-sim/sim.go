package main

import (
	"log"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/womat/mbserver"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/projection"
)

// SimDevice mirrors one configured device inside the slave simulator.
type SimDevice struct {
	Name           string
	UnitID         uint8
	Kind           string
	StatusAddr     uint16
	RequestAddr    uint16
	StateCoil      uint16
	BrightnessAddr *uint16
}

var (
	simulators   = make(map[string]*mbserver.Server) // busId => server
	simulatorsMu sync.RWMutex
	simDevices   = make(map[string]*SimDevice) // device name => SimDevice
	simDevicesMu sync.RWMutex
)

// le byte-swaps a register value. The slave serializes its register
// table big-endian on the wire, while the simulated controllers speak
// the little byte-order convention, so logical values are stored
// swapped. le is its own inverse, so it converts both ways.
func le(v uint16) uint16 { return v<<8 | v>>8 }

// StartRTUSim launches a slave simulator for each RTU bus in the config.
func StartRTUSim(cfg *config.HubConfig) error {
	byBus := cfg.DevicesByBus()
	for _, bus := range cfg.Buses {
		if bus.Type != "rtu" {
			continue
		}
		go runBusSimulator(bus, byBus[bus.BusId])
	}
	return nil
}

func runBusSimulator(bus *config.BusConfig, devices []*config.DeviceConfig) {
	s := mbserver.NewServer()
	simulatorsMu.Lock()
	simulators[bus.BusId] = s
	simulatorsMu.Unlock()

	simDevicesMu.Lock()
	for _, devConf := range devices {
		id := devConf.UnitId
		if id != 1 {
			if err := s.NewDevice(id); err != nil {
				log.Fatalf("NewDevice(%d): %v", id, err)
			}
		}

		sd := &SimDevice{
			Name:           devConf.Name,
			UnitID:         id,
			Kind:           devConf.Kind,
			StatusAddr:     devConf.StatusAddr,
			RequestAddr:    devConf.RequestAddr,
			StateCoil:      devConf.StateCoil,
			BrightnessAddr: devConf.BrightnessAddr,
		}
		simDevices[devConf.Name] = sd

		dev := s.Devices[id]
		switch devConf.Kind {
		case config.KindCover:
			dev.HoldingRegisters[sd.StatusAddr] = le(projection.StatusStandby)
			dev.HoldingRegisters[sd.RequestAddr] = le(projection.StatusStandby)
			go runBlindMotion(s, sd)
		case config.KindLight, config.KindSwitch:
			dev.Coils[sd.StateCoil] = 0
		}
	}
	simDevicesMu.Unlock()

	port, err := serial.Open(&serial.Config{
		Address:  bus.Port,
		BaudRate: bus.Baud,
		DataBits: bus.DataBits,
		StopBits: bus.StopBits,
		Parity:   bus.Parity,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		log.Fatalf("serial open %s: %v", bus.Port, err)
	}
	defer port.Close()

	if err := s.ListenRTU(port); err != nil {
		log.Fatalf("listenRTU: %v", err)
	}
	log.Printf("RTU simulator ready on %s for bus %s (devices: %d)", bus.Port, bus.BusId, len(devices))
	for _, devConf := range devices {
		log.Printf("  - %s (unit %d, %s)", devConf.Name, devConf.UnitId, devConf.Kind)
	}
	for {
		time.Sleep(1 * time.Second)
	}
}

const blindStep = 8 // raw counts per tick

// blindMotion animates one blind actuator: it watches the request
// block for drive commands and moves the status block toward the
// target a few counts per tick, the way the PLC function block behaves.
// Register values pass through le on every access since the table is
// stored in wire order.
type blindMotion struct {
	sd         *SimDevice
	lastCmd    uint16
	targetPos  uint16
	targetTilt uint16
	moving     bool
}

func (m *blindMotion) tick(regs []uint16) {
	cmd := le(regs[m.sd.RequestAddr])
	if cmd != m.lastCmd {
		m.lastCmd = cmd
		switch cmd {
		case projection.StatusOpen:
			m.targetPos, m.targetTilt = 255, 255
			m.moving = true
		case projection.StatusClose:
			m.targetPos, m.targetTilt = 0, 0
			m.moving = true
		case projection.StatusSet:
			m.targetPos = le(regs[m.sd.RequestAddr+1])
			m.targetTilt = le(regs[m.sd.RequestAddr+2])
			m.moving = true
		case projection.StatusStandby:
			m.moving = false
		}
	}

	if !m.moving {
		regs[m.sd.StatusAddr] = le(projection.StatusStandby)
		return
	}

	pos := le(regs[m.sd.StatusAddr+1])
	tilt := le(regs[m.sd.StatusAddr+2])
	if pos == m.targetPos && tilt == m.targetTilt {
		m.moving = false
		regs[m.sd.StatusAddr] = le(projection.StatusStandby)
		return
	}

	if pos < m.targetPos {
		regs[m.sd.StatusAddr] = le(projection.StatusOpening)
	} else {
		regs[m.sd.StatusAddr] = le(projection.StatusClosing)
	}
	regs[m.sd.StatusAddr+1] = le(stepToward(pos, m.targetPos, blindStep))
	regs[m.sd.StatusAddr+2] = le(stepToward(tilt, m.targetTilt, blindStep))
}

func runBlindMotion(s *mbserver.Server, sd *SimDevice) {
	m := &blindMotion{sd: sd}

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for range tick.C {
		dev, ok := s.Devices[sd.UnitID]
		if !ok {
			return
		}
		m.tick(dev.HoldingRegisters)
	}
}

func stepToward(cur, target, step uint16) uint16 {
	switch {
	case cur < target:
		if target-cur < step {
			return target
		}
		return cur + step
	case cur > target:
		if cur-target < step {
			return target
		}
		return cur - step
	default:
		return cur
	}
}
