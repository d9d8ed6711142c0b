package device

import (
	"context"
	"fmt"
	"math"

	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/projection"
)

// JSONGetPutter is the slice of the JSON endpoint client a REST adapter
// needs; tests substitute fakes.
type JSONGetPutter interface {
	GetJSON(ctx context.Context, path string) (map[string]any, error)
	PutJSON(ctx context.Context, path string, body any) (map[string]any, error)
}

const (
	climateParamPath  = "param"
	climateTargetPath = "param/" + projection.FieldTargetTemp
)

// Climate drives a REST thermostat: one GET for the full parameter
// document, one PUT per target-temperature change.
type Climate struct {
	name     string
	client   JSONGetPutter
	minTemp  float64
	maxTemp  float64
	tempStep float64
}

func NewClimate(cfg *config.DeviceConfig, client JSONGetPutter) *Climate {
	return &Climate{
		name:     cfg.Name,
		client:   client,
		minTemp:  cfg.MinTemp,
		maxTemp:  cfg.MaxTemp,
		tempStep: cfg.TempStep,
	}
}

func (c *Climate) Read(ctx context.Context) (hub.DeviceState, error) {
	doc, err := c.client.GetJSON(ctx, climateParamPath)
	if err != nil {
		return hub.DeviceState{}, err
	}
	st, err := projection.ProjectClimate(doc)
	if err != nil {
		return hub.DeviceState{}, err
	}
	return hub.DeviceState{Climate: &st}, nil
}

func (c *Climate) Write(ctx context.Context, cmd hub.Command, prev hub.DeviceState) (hub.DeviceState, error) {
	if cmd.Action != hub.ActionSetTemperature {
		return prev, fmt.Errorf("device %s: unsupported action %q", c.name, cmd.Action)
	}
	if cmd.Temperature == nil {
		return prev, fmt.Errorf("device %s: setTemperature needs a temperature", c.name)
	}
	target := c.snapToStep(*cmd.Temperature)

	doc, err := c.client.PutJSON(ctx, climateTargetPath, map[string]any{"value": target})
	if err != nil {
		return prev, err
	}

	var intent projection.ClimateState
	if prev.Climate != nil {
		intent = *prev.Climate
	}
	intent.TargetTemp = target
	// The confirmed value from the device response takes precedence
	// over the optimistic local assignment.
	if echo, ok := doc["value"].(float64); ok {
		intent.TargetTemp = echo
	}
	return hub.DeviceState{Climate: &intent}, nil
}

// snapToStep clamps the commanded temperature to the configured range
// and rounds it onto the device's step grid.
func (c *Climate) snapToStep(t float64) float64 {
	t = math.Min(c.maxTemp, math.Max(c.minTemp, t))
	if c.tempStep > 0 {
		t = c.minTemp + math.Round((t-c.minTemp)/c.tempStep)*c.tempStep
		t = math.Min(c.maxTemp, t)
	}
	return t
}

var _ Adapter = (*Climate)(nil)
