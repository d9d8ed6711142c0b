// Package device adapts each supported device kind to the common
// read/write contract the poll coordinator drives.
package device

import (
	"context"
	"fmt"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/transport"
)

// Adapter reads a device into its projected state and applies write
// commands. Write returns the state to assume after a successful write:
// the device's confirmed echo when it provides one, the command's
// intent otherwise.
type Adapter interface {
	Read(ctx context.Context) (hub.DeviceState, error)
	Write(ctx context.Context, cmd hub.Command, prev hub.DeviceState) (hub.DeviceState, error)
}

// New builds the adapter for one validated device config, drawing its
// shared connection from the pool.
func New(cfg *config.DeviceConfig, pool *transport.Pool) (Adapter, error) {
	switch cfg.Kind {
	case config.KindCover:
		conn, ok := pool.Bus(cfg.BusId)
		if !ok {
			return nil, fmt.Errorf("device %s: no connection for bus %s", cfg.Name, cfg.BusId)
		}
		return NewCover(cfg, transport.NewRegisterClient(conn, cfg))
	case config.KindLight, config.KindSwitch:
		conn, ok := pool.Bus(cfg.BusId)
		if !ok {
			return nil, fmt.Errorf("device %s: no connection for bus %s", cfg.Name, cfg.BusId)
		}
		return NewLight(cfg, transport.NewRegisterClient(conn, cfg))
	case config.KindClimate:
		client, ok := pool.Endpoint(cfg.EndpointId)
		if !ok {
			return nil, fmt.Errorf("device %s: no client for endpoint %s", cfg.Name, cfg.EndpointId)
		}
		return NewClimate(cfg, client), nil
	default:
		return nil, fmt.Errorf("device %s: unsupported kind %q", cfg.Name, cfg.Kind)
	}
}
