package poller

import (
	"context"
	"time"

	"github.com/fisaks/fieldhub/internal/coordinator"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/logging"
)

type ZeroSignal struct{}

// Zero is the canonical value to send on signal channels.
var Zero ZeroSignal

// Group runs the poll loop for the devices sharing one bus or endpoint.
// The ticker feeds a 1-slot signal channel: when a round is still in
// flight the next tick is dropped, never queued, so slow devices cannot
// build a backlog. Commands win over poll signals.
type Group struct {
	id           string
	pollPeriod   time.Duration
	coordinators []*coordinator.Coordinator
	byName       map[string]*coordinator.Coordinator
	publisher    hub.StatePublisher

	cmdCh  chan hub.Command
	pollCh chan ZeroSignal
}

func NewGroup(id string, pollPeriod time.Duration, coords []*coordinator.Coordinator, publisher hub.StatePublisher, cmdBufSize int) *Group {
	byName := make(map[string]*coordinator.Coordinator, len(coords))
	for _, c := range coords {
		byName[c.Device().Name] = c
	}
	return &Group{
		id:           id,
		pollPeriod:   pollPeriod,
		coordinators: coords,
		byName:       byName,
		publisher:    publisher,
		cmdCh:        make(chan hub.Command, cmdBufSize),
		pollCh:       make(chan ZeroSignal, 1),
	}
}

func (g *Group) ID() string { return g.id }

func (g *Group) Devices() []*coordinator.Coordinator { return g.coordinators }

func (g *Group) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(g.pollPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				logging.Info("poll group ctx done", "group", g.id)
				return
			case <-t.C:
				select {
				case g.pollCh <- Zero: // send a signal; drop if one is queued
				default:
				}
			}
		}
	}()
	logging.Info("poll group started", "group", g.id, "poll", g.pollPeriod.Milliseconds(), "devices", len(g.coordinators))
	g.worker(ctx)
}

func (g *Group) worker(ctx context.Context) {
	for {
		// If a command is waiting, take it immediately.
		select {
		case <-ctx.Done():
			return
		case cmd := <-g.cmdCh:
			g.handleCommand(ctx, cmd)
			continue
		default:
		}

		// Otherwise block; commands still win due to first select above.
		select {
		case <-ctx.Done():
			return
		case cmd := <-g.cmdCh:
			g.handleCommand(ctx, cmd)
		case <-g.pollCh:
			g.pollOnce(ctx)
		}
	}
}

func (g *Group) pollOnce(ctx context.Context) {
	for _, c := range g.coordinators {
		snap, ran := c.TryRunCycle(ctx)
		if !ran {
			logging.Debug("cycle still in flight, skipped", "group", g.id, "device", c.Device().Name)
			continue
		}
		g.publish(ctx, snap)
	}
}

func (g *Group) handleCommand(ctx context.Context, cmd hub.Command) {
	c, ok := g.byName[cmd.Device]
	if !ok {
		logging.Warn("command for unknown device", "group", g.id, "device", cmd.Device)
		return
	}
	snap := c.WriteCommand(ctx, cmd)
	g.publish(ctx, snap)
}

func (g *Group) publish(ctx context.Context, snap hub.Snapshot) {
	if err := g.publisher.PublishSnapshot(ctx, snap); err != nil {
		logging.Warn("failed to publish snapshot", "group", g.id, "device", snap.Device, "error", err)
	}
}

// PushCommand enqueues a write command without blocking; it reports
// false when the buffer is full.
func (g *Group) PushCommand(cmd hub.Command) bool {
	select {
	case g.cmdCh <- cmd:
		return true
	default:
		return false
	}
}
