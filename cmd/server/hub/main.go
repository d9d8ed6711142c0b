package main

// cSpell:ignore mqtt modbus fieldhub
import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fisaks/fieldhub/internal/catalog"
	"github.com/fisaks/fieldhub/internal/config"
	"github.com/fisaks/fieldhub/internal/logging"
	"github.com/fisaks/fieldhub/internal/messaging"
	"github.com/fisaks/fieldhub/internal/poller"
	"github.com/fisaks/fieldhub/internal/transport"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {

	mqttURL := getenv("MQTT_URL", "tcp://localhost:1883")
	path := getenv("HUB_CONFIG_PATH", "/etc/fieldhub/hub-config.json")
	hubName := getenv("HUB_NAME", "hub1")
	topicPrefix := "fieldhub/" + hubName

	logging.Init()
	cfg, err := config.LoadHubConfig(path)
	if err != nil {
		logging.Fatal("Hub config error", "error", err)
	}

	logging.Info("Loaded config",
		"buses", len(cfg.Buses),
		"endpoints", len(cfg.Endpoints),
		"devices", len(cfg.Devices),
		"pollMs", cfg.PollIntervalMs,
	)

	pool, err := transport.NewPool(cfg)
	if err != nil {
		logging.Fatal("transport init", "error", err)
	}
	defer pool.Close()

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := catalog.NewHubCatalog(cfg)
	broker := messaging.NewHubBroker(messaging.BrokerConfig{
		BrokerURL:        mqttURL,
		ClientName:       hubName,
		TopicPrefix:      topicPrefix,
		ConnectTimeout:   10 * time.Second,
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
	}, cfg.Heartbeat())
	broker.AddOnConnectPublisher("catalog", cat.OnConnectPublish(broker.Topic("catalog")))

	if err := broker.Connect(ctx); err != nil {
		logging.Fatal("mqtt connect", "error", err)
	}
	defer broker.Close(ctx)

	pollers, err := poller.NewPollers(cfg, pool, broker)
	if err != nil {
		logging.Fatal("poller init", "error", err)
	}
	broker.StartCommandSubscriber(ctx, pollers)

	// One worker goroutine per bus or endpoint group
	pollers.StartAll(ctx)

	// Wait for SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logging.Info("Shutting down", "signal", s)

	// Give pollers a moment to exit cleanly (they honor ctx)
	cancel()
	time.Sleep(200 * time.Millisecond)
	logging.Info("bye")
}
