// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fisaks/fieldhub/internal/logging"
)

/* =========================
   Types
   ========================= */

type HubConfig struct {
	Buses             []*BusConfig      `json:"buses"`
	Endpoints         []*EndpointConfig `json:"endpoints"`
	Devices           []*DeviceConfig   `json:"devices"`
	PollIntervalMs    int               `json:"pollIntervalMs"`    // global poll cadence
	HeartbeatSec      int               `json:"heartbeatSec"`      // republish-unchanged cadence
	CommandBufferSize int               `json:"commandBufferSize"` // per poll group
}

type BusConfig struct {
	BusId          string `json:"busId"`
	Type           string `json:"type"` // "rtu" | "tcp"
	TCPAddr        string `json:"tcpAddr"`
	Port           string `json:"port"`
	Baud           int    `json:"baud"`
	DataBits       int    `json:"dataBits"`
	StopBits       int    `json:"stopBits"`
	Parity         string `json:"parity"`
	TimeoutMs      int    `json:"timeoutMs"`
	PollIntervalMs int    `json:"pollIntervalMs"` // overrides the global cadence
	Debug          bool   `json:"debug"`
}

type EndpointConfig struct {
	EndpointId     string `json:"endpointId"`
	BaseURL        string `json:"baseUrl"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSec     int    `json:"timeoutSec"`
	PollIntervalMs int    `json:"pollIntervalMs"`
}

type Capability string

const (
	CapReadable Capability = "readable"
	CapWritable Capability = "writable"
	CapScalable Capability = "scalable"
)

type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// Device kinds understood by the hub.
const (
	KindCover   = "cover"
	KindLight   = "light"
	KindSwitch  = "switch"
	KindClimate = "climate"
)

type DeviceConfig struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	BusId        string   `json:"busId,omitempty"`
	EndpointId   string   `json:"endpointId,omitempty"`
	UnitId       uint8    `json:"unitId,omitempty"`
	ByteOrder    string   `json:"byteOrder,omitempty"` // "little" (default) | "big"
	Capabilities []string `json:"capabilities,omitempty"`
	Debug        bool     `json:"debug,omitempty"`

	// cover: three consecutive holding registers (status, position, tilt)
	// at statusAddr; commands go to requestAddr.
	StatusAddr      uint16 `json:"statusAddr,omitempty"`
	RequestAddr     uint16 `json:"requestAddr,omitempty"`
	TiltGatesClosed *bool  `json:"tiltGatesClosed,omitempty"` // default true

	// light / switch
	StateCoil      uint16  `json:"stateCoil,omitempty"`
	BrightnessAddr *uint16 `json:"brightnessAddr,omitempty"`

	// climate
	MinTemp  float64 `json:"minTemp,omitempty"`
	MaxTemp  float64 `json:"maxTemp,omitempty"`
	TempStep float64 `json:"tempStep,omitempty"`

	// Resolved during validation; never present in the JSON.
	Bus      *BusConfig      `json:"-"`
	Endpoint *EndpointConfig `json:"-"`

	caps CapabilitySet
}

/* =========================
   Helpers
   ========================= */

func (b *BusConfig) Timeout() time.Duration { return time.Duration(b.TimeoutMs) * time.Millisecond }

func (e *EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

func (c *HubConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *HubConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}

func (d *DeviceConfig) Caps() CapabilitySet { return d.caps }

// TiltGated reports whether a closed cover additionally requires tilt < 2.
// Field-bus installations disagree on this, so it is per-device policy.
func (d *DeviceConfig) TiltGated() bool {
	return d.TiltGatesClosed == nil || *d.TiltGatesClosed
}

func (d *DeviceConfig) isModbus() bool {
	return d.Kind == KindCover || d.Kind == KindLight || d.Kind == KindSwitch
}

// DevicesByBus groups the modbus devices under their bus id.
func (c *HubConfig) DevicesByBus() map[string][]*DeviceConfig {
	res := make(map[string][]*DeviceConfig)
	for _, d := range c.Devices {
		if d.isModbus() {
			res[d.BusId] = append(res[d.BusId], d)
		}
	}
	return res
}

// DevicesByEndpoint groups the HTTP devices under their endpoint id.
func (c *HubConfig) DevicesByEndpoint() map[string][]*DeviceConfig {
	res := make(map[string][]*DeviceConfig)
	for _, d := range c.Devices {
		if d.Kind == KindClimate {
			res[d.EndpointId] = append(res[d.EndpointId], d)
		}
	}
	return res
}

/* =========================
   Strict load + validate
   ========================= */

func LoadHubConfig(path string) (*HubConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return loadHubConfig(raw)
}

func LoadHubConfigFromReader(r io.Reader) (*HubConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return loadHubConfig(raw)
}

func loadHubConfig(raw []byte) (*HubConfig, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg HubConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *HubConfig) Validate() error {
	var errs multiErr

	/* Buses */
	busSet := map[string]*BusConfig{}
	for i, b := range c.Buses {
		if strings.TrimSpace(b.BusId) == "" {
			errs.addf("buses[%d]: busId is required", i)
		} else if _, ok := busSet[b.BusId]; ok {
			errs.addf("buses[%d]: duplicate busId %q", i, b.BusId)
		} else {
			busSet[b.BusId] = b
		}

		switch strings.ToLower(b.Type) {
		case "tcp":
			if strings.TrimSpace(b.TCPAddr) == "" {
				errs.addf("buses[%d/%s]: tcpAddr is required for type=tcp", i, b.BusId)
			}
		case "rtu":
			if strings.TrimSpace(b.Port) == "" {
				errs.addf("buses[%d/%s]: port is required for type=rtu", i, b.BusId)
			}
			if b.Baud <= 0 {
				errs.addf("buses[%d/%s]: baud must be > 0 for type=rtu", i, b.BusId)
			}
			if b.DataBits == 0 {
				b.DataBits = 8
			}
			if b.StopBits == 0 {
				b.StopBits = 1
			}
			if b.Parity == "" {
				b.Parity = "N"
			}
			if !slices.Contains([]string{"N", "E", "O"}, strings.ToUpper(b.Parity)) {
				errs.addf("buses[%d/%s]: parity must be one of N,E,O", i, b.BusId)
			}
		default:
			errs.addf("buses[%d/%s]: type must be 'rtu' or 'tcp'", i, b.BusId)
		}

		if b.TimeoutMs <= 0 {
			b.TimeoutMs = 150
		}
	}

	/* Endpoints */
	endpointSet := map[string]*EndpointConfig{}
	for i, e := range c.Endpoints {
		if strings.TrimSpace(e.EndpointId) == "" {
			errs.addf("endpoints[%d]: endpointId is required", i)
		} else if _, ok := endpointSet[e.EndpointId]; ok {
			errs.addf("endpoints[%d]: duplicate endpointId %q", i, e.EndpointId)
		} else {
			endpointSet[e.EndpointId] = e
		}

		if strings.TrimSpace(e.BaseURL) == "" {
			errs.addf("endpoints[%d/%s]: baseUrl is required", i, e.EndpointId)
		} else if u, err := url.Parse(e.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.addf("endpoints[%d/%s]: baseUrl %q is not an absolute URL", i, e.EndpointId, e.BaseURL)
		}
		if e.Username == "" && e.Password != "" {
			errs.addf("endpoints[%d/%s]: password given without username", i, e.EndpointId)
		}
		if e.TimeoutSec <= 0 {
			e.TimeoutSec = 10
		}
	}

	/* Poll / heartbeat */
	if c.PollIntervalMs <= 0 {
		errs.add("pollIntervalMs must be > 0 (e.g., 500)")
	}
	if c.HeartbeatSec < 0 {
		c.HeartbeatSec = 60
	}
	if c.HeartbeatSec == 0 {
		logging.Warn("heartbeatSec=0 configured, heartbeats disabled")
	}
	if c.CommandBufferSize <= 0 {
		c.CommandBufferSize = 8
	}

	/* Devices */
	if len(c.Devices) == 0 {
		errs.add("devices cannot be empty")
	}
	seenNames := map[string]int{}
	for i, d := range c.Devices {
		if strings.TrimSpace(d.Name) == "" {
			errs.addf("devices[%d]: name is required", i)
		} else if j, clash := seenNames[d.Name]; clash {
			errs.addf("devices[%d/%s]: duplicate device name (also at devices[%d])", i, d.Name, j)
		} else {
			seenNames[d.Name] = i
		}

		switch d.Kind {
		case KindCover, KindLight, KindSwitch:
			if d.BusId == "" {
				errs.addf("devices[%d/%s]: busId is required for kind=%s", i, d.Name, d.Kind)
			} else if bus, ok := busSet[d.BusId]; !ok {
				errs.addf("devices[%d/%s]: unknown busId %q", i, d.Name, d.BusId)
			} else {
				d.Bus = bus
			}
			if d.UnitId == 0 || d.UnitId > 247 {
				errs.addf("devices[%d/%s]: unitId must be 1..247", i, d.Name)
			}
		case KindClimate:
			if d.EndpointId == "" {
				errs.addf("devices[%d/%s]: endpointId is required for kind=climate", i, d.Name)
			} else if ep, ok := endpointSet[d.EndpointId]; !ok {
				errs.addf("devices[%d/%s]: unknown endpointId %q", i, d.Name, d.EndpointId)
			} else {
				d.Endpoint = ep
			}
			if d.MinTemp == 0 {
				d.MinTemp = 10
			}
			if d.MaxTemp == 0 {
				d.MaxTemp = 25
			}
			if d.TempStep == 0 {
				d.TempStep = 0.5
			}
			if d.MinTemp >= d.MaxTemp {
				errs.addf("devices[%d/%s]: minTemp must be < maxTemp", i, d.Name)
			}
			if d.TempStep < 0 {
				errs.addf("devices[%d/%s]: tempStep cannot be negative", i, d.Name)
			}
		case "":
			errs.addf("devices[%d/%s]: kind is required", i, d.Name)
		default:
			errs.addf("devices[%d/%s]: unknown kind %q", i, d.Name, d.Kind)
		}

		switch strings.ToLower(d.ByteOrder) {
		case "", "little", "big":
		default:
			errs.addf("devices[%d/%s]: byteOrder must be 'little' or 'big'", i, d.Name)
		}

		d.caps = make(CapabilitySet, len(d.Capabilities))
		for _, raw := range d.Capabilities {
			cap := Capability(raw)
			switch cap {
			case CapReadable, CapWritable, CapScalable:
				d.caps[cap] = true
			default:
				errs.addf("devices[%d/%s]: unknown capability %q", i, d.Name, raw)
			}
		}
		if len(d.Capabilities) == 0 {
			d.caps = defaultCaps(d)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// defaultCaps fills the capability set for configs that omit it.
func defaultCaps(d *DeviceConfig) CapabilitySet {
	caps := CapabilitySet{CapReadable: true, CapWritable: true}
	switch d.Kind {
	case KindCover, KindClimate:
		caps[CapScalable] = true
	case KindLight:
		if d.BrightnessAddr != nil {
			caps[CapScalable] = true
		}
	}
	return caps
}

/* =========================
   Comment stripping + utils
   ========================= */

// stripJSONComments drops // and /* */ comments. String literals are
// copied verbatim, escapes included, so a "//" inside a value (URLs!)
// is never mistaken for a comment.
func stripJSONComments(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); {
		switch {
		case in[i] == '"':
			out = append(out, in[i])
			i++
			for i < len(in) {
				out = append(out, in[i])
				if in[i] == '\\' && i+1 < len(in) {
					out = append(out, in[i+1])
					i += 2
					continue
				}
				if in[i] == '"' {
					i++
					break
				}
				i++
			}
		case in[i] == '/' && i+1 < len(in) && in[i+1] == '/':
			for i < len(in) && in[i] != '\n' && in[i] != '\r' {
				i++
			}
		case in[i] == '/' && i+1 < len(in) && in[i+1] == '*':
			i += 2
			for i+1 < len(in) && !(in[i] == '*' && in[i+1] == '/') {
				i++
			}
			i += 2
			if i > len(in) {
				i = len(in)
			}
		default:
			out = append(out, in[i])
			i++
		}
	}
	return out
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
