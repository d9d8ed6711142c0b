package catalog

import (
	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/messaging"
)

// HubCatalogMessage is the retained description of every configured
// device, published on each broker (re)connect so consumers can
// discover what the hub serves.
type HubCatalogMessage struct {
	Devices []DeviceSummary `json:"devices"`
}

type DeviceSummary struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	BusId        string   `json:"busId,omitempty"`
	EndpointId   string   `json:"endpointId,omitempty"`
	UnitId       uint8    `json:"unitId,omitempty"`
	Capabilities []string `json:"capabilities"`
	MinTemp      float64  `json:"minTemp,omitempty"`
	MaxTemp      float64  `json:"maxTemp,omitempty"`
	TempStep     float64  `json:"tempStep,omitempty"`
}

type Catalog struct {
	cfg *config.HubConfig
}

func NewHubCatalog(cfg *config.HubConfig) *Catalog {
	return &Catalog{cfg: cfg}
}

func (c *Catalog) buildMessage() *HubCatalogMessage {
	devices := make([]DeviceSummary, 0, len(c.cfg.Devices))
	for _, d := range c.cfg.Devices {
		caps := make([]string, 0, len(d.Caps()))
		for _, cap := range []config.Capability{config.CapReadable, config.CapWritable, config.CapScalable} {
			if d.Caps().Has(cap) {
				caps = append(caps, string(cap))
			}
		}
		devices = append(devices, DeviceSummary{
			Name:         d.Name,
			Kind:         d.Kind,
			BusId:        d.BusId,
			EndpointId:   d.EndpointId,
			UnitId:       d.UnitId,
			Capabilities: caps,
			MinTemp:      d.MinTemp,
			MaxTemp:      d.MaxTemp,
			TempStep:     d.TempStep,
		})
	}
	return &HubCatalogMessage{Devices: devices}
}

// OnConnectPublish builds the retained catalog publication; it is
// registered with the broker as an on-connect publisher.
func (c *Catalog) OnConnectPublish(topic string) messaging.OnConnectPublisher {
	return func() (messaging.PublishRequest, error) {
		return messaging.PublishRequest{
			Topic:   topic,
			Qos:     messaging.AtLeastOnce,
			Retain:  true,
			Payload: c.buildMessage(),
		}, nil
	}
}
