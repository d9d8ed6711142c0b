package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/coordinator"
	"github.com/fisaks/fieldhub/internal/device"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/transport"
)

// Pollers owns every poll group and routes incoming commands to the
// group that polls the addressed device. It implements
// hub.CommandSubscriber for the messaging layer.
type Pollers struct {
	groups []*Group
}

func NewPollers(cfg *config.HubConfig, pool *transport.Pool, publisher hub.StatePublisher) (*Pollers, error) {
	var groups []*Group

	for busID, devices := range cfg.DevicesByBus() {
		coords, err := buildCoordinators(devices, pool)
		if err != nil {
			return nil, err
		}
		period := cfg.PollInterval()
		if devices[0].Bus != nil && devices[0].Bus.PollIntervalMs > 0 {
			period = time.Duration(devices[0].Bus.PollIntervalMs) * time.Millisecond
		}
		groups = append(groups, NewGroup(busID, period, coords, publisher, cfg.CommandBufferSize))
	}

	for endpointID, devices := range cfg.DevicesByEndpoint() {
		coords, err := buildCoordinators(devices, pool)
		if err != nil {
			return nil, err
		}
		period := cfg.PollInterval()
		if devices[0].Endpoint != nil && devices[0].Endpoint.PollIntervalMs > 0 {
			period = time.Duration(devices[0].Endpoint.PollIntervalMs) * time.Millisecond
		}
		groups = append(groups, NewGroup(endpointID, period, coords, publisher, cfg.CommandBufferSize))
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("no devices to poll")
	}
	return &Pollers{groups: groups}, nil
}

func buildCoordinators(devices []*config.DeviceConfig, pool *transport.Pool) ([]*coordinator.Coordinator, error) {
	coords := make([]*coordinator.Coordinator, 0, len(devices))
	for _, d := range devices {
		adapter, err := device.New(d, pool)
		if err != nil {
			return nil, err
		}
		c, err := coordinator.New(d, adapter)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}

// StartAll launches one worker goroutine per group.
func (p *Pollers) StartAll(ctx context.Context) {
	for _, g := range p.groups {
		go g.Start(ctx)
	}
}

// FindGroupAndDevice locates the group polling the named device.
func (p *Pollers) FindGroupAndDevice(name string) (*Group, *coordinator.Coordinator) {
	for _, g := range p.groups {
		if c, ok := g.byName[name]; ok {
			return g, c
		}
	}
	return nil, nil
}

func (p *Pollers) OnDeviceCommand(ctx context.Context, cmd hub.Command) error {
	g, c := p.FindGroupAndDevice(cmd.Device)
	if g == nil || c == nil {
		return fmt.Errorf("device not found: %s", cmd.Device)
	}
	if !g.PushCommand(cmd) {
		return fmt.Errorf("command buffer full for device: %s", cmd.Device)
	}
	return nil
}

var _ hub.CommandSubscriber = (*Pollers)(nil)
