// Package coordinator owns the periodic update cycle for one device:
// read, decode, project, and the availability flag. Failures never
// escape a cycle; their only visible effect is availability going false
// while the projected state keeps its last known value.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/device"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/logging"
	"github.com/fisaks/fieldhub/internal/transport"
)

type Coordinator struct {
	cfg     *config.DeviceConfig
	adapter device.Adapter

	// gate admits one cycle or write at a time per device, so a slow
	// response can never land as an out-of-order late update.
	gate chan struct{}

	mu   sync.RWMutex
	snap hub.Snapshot
}

func New(cfg *config.DeviceConfig, adapter device.Adapter) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("coordinator: device config required")
	}
	if adapter == nil {
		return nil, errors.New("coordinator: adapter required")
	}
	return &Coordinator{
		cfg:     cfg,
		adapter: adapter,
		gate:    make(chan struct{}, 1),
		snap: hub.Snapshot{
			Device:       cfg.Name,
			Availability: hub.AvailabilityUnknown,
		},
	}, nil
}

func (c *Coordinator) Device() *config.DeviceConfig { return c.cfg }

// Snapshot returns the last committed (state, availability) pair. Safe
// to call between cycles; a cycle in flight never exposes partial data.
func (c *Coordinator) Snapshot() hub.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// RunCycle performs exactly one poll cycle, waiting for any cycle
// already in flight to finish first.
func (c *Coordinator) RunCycle(ctx context.Context) hub.Snapshot {
	c.gate <- struct{}{}
	defer func() { <-c.gate }()
	return c.cycle(ctx)
}

// TryRunCycle performs one poll cycle unless one is already in flight,
// in which case the new cycle is skipped, not queued.
func (c *Coordinator) TryRunCycle(ctx context.Context) (hub.Snapshot, bool) {
	select {
	case c.gate <- struct{}{}:
	default:
		return c.Snapshot(), false
	}
	defer func() { <-c.gate }()
	return c.cycle(ctx), true
}

func (c *Coordinator) cycle(ctx context.Context) hub.Snapshot {
	if !c.cfg.Caps().Has(config.CapReadable) {
		return c.Snapshot()
	}

	st, err := c.adapter.Read(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Timestamp = time.Now()
	if err != nil {
		logging.Warn("poll cycle failed", "device", c.cfg.Name, "error", err)
		c.snap.Availability = hub.Unavailable
		return c.snap
	}
	c.snap.State = st
	c.snap.Availability = hub.Available
	return c.snap
}

// WriteCommand applies one write command. A transport failure marks the
// device unavailable without touching the state; a bad command is
// logged and changes nothing.
func (c *Coordinator) WriteCommand(ctx context.Context, cmd hub.Command) hub.Snapshot {
	if !c.cfg.Caps().Has(config.CapWritable) {
		logging.Warn("write command for non-writable device", "device", c.cfg.Name, "action", cmd.Action)
		return c.Snapshot()
	}

	c.gate <- struct{}{}
	defer func() { <-c.gate }()

	st, err := c.adapter.Write(ctx, cmd, c.Snapshot().State)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.Error("write command failed", "device", c.cfg.Name, "action", cmd.Action, "error", err)
		if transport.KindOf(err) != 0 {
			c.snap.Availability = hub.Unavailable
			c.snap.Timestamp = time.Now()
		}
		return c.snap
	}
	c.snap.State = st
	c.snap.Availability = hub.Available
	c.snap.Timestamp = time.Now()
	return c.snap
}
