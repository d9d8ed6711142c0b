package main

// cSpell:ignore mbserver Modbus
import (
	"log"
	"os"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/fisaks/fieldhub/internal/projection"
)

// le byte-swaps a register value. The slave serializes its register
// table big-endian on the wire, while the simulated controllers speak
// the little byte-order convention, so logical values are stored
// swapped.
func le(v uint16) uint16 { return v<<8 | v>>8 }

// Quick Modbus TCP slave for poking at the hub without serial hardware.
// Seeds one blind at HR0..2 (request block HR10..12) and one light on
// coil 0 with brightness at HR20.
func main() {
	addr := os.Getenv("MB_LISTEN_ADDR")
	if addr == "" {
		addr = ":1502"
	}

	srv := mbserver.NewServer()

	srv.HoldingRegisters[0] = le(projection.StatusStandby) // blind status
	srv.HoldingRegisters[1] = 0                            // position raw
	srv.HoldingRegisters[2] = 0                            // tilt raw
	srv.HoldingRegisters[10] = le(projection.StatusStandby)
	srv.HoldingRegisters[20] = le(128) // light brightness
	srv.Coils[0] = 1                   // light on

	if err := srv.ListenTCP(addr); err != nil {
		log.Fatalf("ListenTCP: %v", err)
	}
	defer srv.Close()
	log.Printf("Modbus TCP slave listening on %s", addr)
	// Wait forever
	for {
		time.Sleep(1 * time.Second)
	}
}
