package transport

import (
	"fmt"
	"strings"

	"github.com/fisaks/fieldhub/internal/config"
)

// Pool holds the shared connections for every configured bus and HTTP
// endpoint. It is built once by the composing application and handed to
// each coordinator; there is no process-wide registry.
type Pool struct {
	buses     map[string]*BusConnection
	endpoints map[string]*JSONClient
}

func NewPool(cfg *config.HubConfig) (*Pool, error) {
	p := &Pool{
		buses:     make(map[string]*BusConnection, len(cfg.Buses)),
		endpoints: make(map[string]*JSONClient, len(cfg.Endpoints)),
	}
	for _, bus := range cfg.Buses {
		switch strings.ToLower(bus.Type) {
		case "rtu":
			p.buses[bus.BusId] = NewRTUConnection(bus)
		case "tcp":
			p.buses[bus.BusId] = NewTCPConnection(bus)
		default:
			return nil, fmt.Errorf("bus %s: unsupported type %q", bus.BusId, bus.Type)
		}
	}
	for _, ep := range cfg.Endpoints {
		client, err := NewJSONClient(ep)
		if err != nil {
			return nil, err
		}
		p.endpoints[ep.EndpointId] = client
	}
	return p, nil
}

func (p *Pool) Bus(id string) (*BusConnection, bool) {
	c, ok := p.buses[id]
	return c, ok
}

func (p *Pool) Endpoint(id string) (*JSONClient, bool) {
	c, ok := p.endpoints[id]
	return c, ok
}

func (p *Pool) Close() {
	for _, c := range p.buses {
		c.Close()
	}
}
