package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/logging"
	"github.com/fisaks/fieldhub/internal/state"
)

// HubBroker is the hub-facing view of the MQTT broker: retained state
// and availability per device, with change detection so an unchanged
// snapshot is only republished on the heartbeat cadence.
type HubBroker interface {
	Broker
	hub.StatePublisher
	StartCommandSubscriber(ctx context.Context, subscriber hub.CommandSubscriber)
	AddOnConnectPublisher(id string, fn OnConnectPublisher)
	ClearPublishedState()
}

type hubBroker struct {
	*MsgBroker
	pub               Broker // publish path, swapped out in tests
	subscriber        hub.CommandSubscriber
	store             state.Store
	heartbeatInterval time.Duration
}

func NewHubBroker(cfg BrokerConfig, heartbeatInterval time.Duration) HubBroker {
	mb := NewBroker(cfg)
	b := &hubBroker{
		MsgBroker:         mb,
		pub:               mb,
		store:             state.NewStore(),
		heartbeatInterval: heartbeatInterval,
	}
	// Consumers that restarted while we were disconnected may hold no
	// retained state; forgetting the cache makes the next poll round
	// republish every device.
	mb.OnConnectHook(b.ClearPublishedState)
	return b
}

func (b *hubBroker) StartCommandSubscriber(ctx context.Context, subscriber hub.CommandSubscriber) {
	b.subscriber = subscriber
	if _, err := b.Subscribe(ctx, b.Topic("device", "+", "cmd"), AtLeastOnce, b.onMessage); err != nil {
		logging.Error("command subscribe failed", "error", err)
	}
}

func (b *hubBroker) PublishSnapshot(ctx context.Context, snap hub.Snapshot) error {
	isChanged := b.store.HasChanged(snap.Device, snap)
	needsHeartbeat := false
	if !isChanged && b.heartbeatInterval > 0 {
		_, lastSent, hasPrev := b.store.GetLast(snap.Device)
		needsHeartbeat = !hasPrev || time.Since(lastSent) > b.heartbeatInterval
	}
	if !isChanged && !needsHeartbeat {
		return nil
	}

	logging.Debug("publishing device snapshot", "device", snap.Device, "availability", snap.Availability.String())
	if err := b.pub.PublishJSON(ctx, b.pub.Topic("device", snap.Device, "state"), FireAndForget, true, snap); err != nil {
		return err
	}
	err := b.pub.Publish(ctx, b.pub.Topic("device", snap.Device, "availability"), FireAndForget, true,
		[]byte(snap.Availability.String()))
	if err == nil {
		b.store.Update(snap.Device, snap)
	}
	return err
}

// ClearPublishedState forgets the change-detection cache so the next
// poll round republishes everything. Runs on every broker (re)connect.
func (b *hubBroker) ClearPublishedState() { b.store.Clear() }

func (b *hubBroker) onMessage(ctx context.Context, topic string, payload []byte) {
	logging.Debug("received cmd message", "topic", topic)
	// <prefix>/device/<deviceName>/cmd
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		logging.Warn("cmd topic malformed", "topic", topic)
		return
	}
	deviceName := parts[len(parts)-2]

	var cmd hub.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		logging.Warn("cmd json", "error", err)
		return
	}
	cmd.Device = deviceName

	if b.subscriber == nil {
		logging.Warn("cmd received before subscriber wired", "device", deviceName)
		return
	}
	if err := b.subscriber.OnDeviceCommand(ctx, cmd); err != nil {
		logging.Warn("cmd handling", "error", err)
	}
}
