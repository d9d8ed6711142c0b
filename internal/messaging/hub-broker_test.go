package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fisaks/fieldhub/internal/hub"
	"github.com/fisaks/fieldhub/internal/projection"
	"github.com/fisaks/fieldhub/internal/state"
)

type fakePublish struct {
	topic   string
	retain  bool
	payload any
}

// fakeBroker records publishes so the hub-facing layer can be tested
// without a live MQTT broker.
type fakeBroker struct {
	prefix string
	pubs   []fakePublish
	err    error
}

func (f *fakeBroker) Connect(context.Context) error { return nil }
func (f *fakeBroker) Close(context.Context) error   { return nil }
func (f *fakeBroker) IsConnected() bool             { return true }

func (f *fakeBroker) Topic(parts ...string) string {
	return strings.Join(append([]string{f.prefix}, parts...), "/")
}

func (f *fakeBroker) Publish(_ context.Context, topic string, _ QoS, retain bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.pubs = append(f.pubs, fakePublish{topic: topic, retain: retain, payload: string(payload)})
	return nil
}

func (f *fakeBroker) PublishJSON(_ context.Context, topic string, _ QoS, retain bool, v any) error {
	if f.err != nil {
		return f.err
	}
	f.pubs = append(f.pubs, fakePublish{topic: topic, retain: retain, payload: v})
	return nil
}

func (f *fakeBroker) Subscribe(context.Context, string, QoS, func(context.Context, string, []byte)) (Subscription, error) {
	return nil, nil
}

func newTestHubBroker(heartbeat time.Duration) (*hubBroker, *fakeBroker) {
	fake := &fakeBroker{prefix: "fieldhub/hub1"}
	return &hubBroker{
		MsgBroker:         NewBroker(BrokerConfig{TopicPrefix: "fieldhub/hub1"}),
		pub:               fake,
		store:             state.NewStore(),
		heartbeatInterval: heartbeat,
	}, fake
}

func coverSnapshot(pos int) hub.Snapshot {
	closed := pos == 0
	return hub.Snapshot{
		Device: "blind1",
		State: hub.DeviceState{
			Cover:  &projection.CoverState{Motion: projection.MotionStandby, Position: pos, Tilt: 0},
			Closed: &closed,
		},
		Availability: hub.Available,
		Timestamp:    time.Now(),
	}
}

func TestPublishSnapshotChangeDetection(t *testing.T) {
	b, fake := newTestHubBroker(0)
	ctx := context.Background()

	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.pubs) != 2 {
		t.Fatalf("got %d publishes, want state + availability", len(fake.pubs))
	}
	if fake.pubs[0].topic != "fieldhub/hub1/device/blind1/state" {
		t.Errorf("state topic = %q", fake.pubs[0].topic)
	}
	if fake.pubs[1].topic != "fieldhub/hub1/device/blind1/availability" {
		t.Errorf("availability topic = %q", fake.pubs[1].topic)
	}
	if fake.pubs[1].payload != "available" {
		t.Errorf("availability payload = %v", fake.pubs[1].payload)
	}
	for _, p := range fake.pubs {
		if !p.retain {
			t.Errorf("publish to %s not retained", p.topic)
		}
	}

	// unchanged snapshot, no heartbeat configured: nothing goes out
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(fake.pubs) != 2 {
		t.Errorf("unchanged snapshot republished: %d publishes", len(fake.pubs))
	}

	// changed position goes out again
	if err := b.PublishSnapshot(ctx, coverSnapshot(60)); err != nil {
		t.Fatalf("changed publish: %v", err)
	}
	if len(fake.pubs) != 4 {
		t.Errorf("changed snapshot not republished: %d publishes", len(fake.pubs))
	}
}

func TestPublishSnapshotHeartbeat(t *testing.T) {
	b, fake := newTestHubBroker(10 * time.Millisecond)
	ctx := context.Background()

	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(fake.pubs) != 2 {
		t.Fatalf("republished before heartbeat elapsed: %d", len(fake.pubs))
	}

	time.Sleep(20 * time.Millisecond)
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("heartbeat publish: %v", err)
	}
	if len(fake.pubs) != 4 {
		t.Errorf("heartbeat did not republish: %d publishes", len(fake.pubs))
	}
}

func TestClearPublishedStateForcesRepublish(t *testing.T) {
	b, fake := newTestHubBroker(0)
	ctx := context.Background()

	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(fake.pubs) != 2 {
		t.Fatalf("setup: %d publishes", len(fake.pubs))
	}

	// a reconnect clears the cache, so the same snapshot goes out again
	b.ClearPublishedState()
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("post-clear publish: %v", err)
	}
	if len(fake.pubs) != 4 {
		t.Errorf("cleared cache did not force republish: %d publishes", len(fake.pubs))
	}
}

func TestPublishSnapshotFailureStaysDirty(t *testing.T) {
	b, fake := newTestHubBroker(0)
	ctx := context.Background()

	fake.err = errors.New("broker down")
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err == nil {
		t.Fatal("expected publish error")
	}

	// once the broker recovers the same snapshot must still go out
	fake.err = nil
	if err := b.PublishSnapshot(ctx, coverSnapshot(50)); err != nil {
		t.Fatalf("retry publish: %v", err)
	}
	if len(fake.pubs) != 2 {
		t.Errorf("snapshot lost after failed publish: %d publishes", len(fake.pubs))
	}
}

type recordingSubscriber struct {
	cmds []hub.Command
}

func (r *recordingSubscriber) OnDeviceCommand(_ context.Context, cmd hub.Command) error {
	r.cmds = append(r.cmds, cmd)
	return nil
}

func TestOnMessageRoutesCommand(t *testing.T) {
	b, _ := newTestHubBroker(0)
	sub := &recordingSubscriber{}
	b.subscriber = sub

	b.onMessage(context.Background(), "fieldhub/hub1/device/blind1/cmd", []byte(`{"action":"open"}`))
	if len(sub.cmds) != 1 {
		t.Fatalf("got %d commands", len(sub.cmds))
	}
	if sub.cmds[0].Device != "blind1" || sub.cmds[0].Action != hub.ActionOpen {
		t.Errorf("command = %+v", sub.cmds[0])
	}

	// device name comes from the topic, never the payload
	b.onMessage(context.Background(), "fieldhub/hub1/device/blind2/cmd", []byte(`{"action":"close","device":"spoofed"}`))
	if sub.cmds[1].Device != "blind2" {
		t.Errorf("device = %q, want blind2", sub.cmds[1].Device)
	}

	// malformed payloads are dropped
	b.onMessage(context.Background(), "fieldhub/hub1/device/blind1/cmd", []byte(`{`))
	if len(sub.cmds) != 2 {
		t.Errorf("malformed payload reached the subscriber")
	}
}

func TestPublishRejectsInvalidQoS(t *testing.T) {
	b := NewBroker(BrokerConfig{})

	if err := b.Publish(context.Background(), "t", QoS(3), false, nil); err == nil || !strings.Contains(err.Error(), "qos") {
		t.Errorf("Publish: err = %v, want invalid qos", err)
	}
	if _, err := b.Subscribe(context.Background(), "t", QoS(7), nil); err == nil || !strings.Contains(err.Error(), "qos") {
		t.Errorf("Subscribe: err = %v, want invalid qos", err)
	}
}
