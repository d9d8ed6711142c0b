package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fisaks/fieldhub/internal/catalog"
)

var deviceKinds = map[string]string{}

func readCatalogMessage(payload []byte) (string, error) {
	var catalogMsg catalog.HubCatalogMessage

	if err := json.Unmarshal(payload, &catalogMsg); err == nil {
		for _, dev := range catalogMsg.Devices {
			deviceKinds[dev.Name] = dev.Kind
		}
	}
	out, err := json.Marshal(catalogMsg)
	return string(out), err
}

// annotateState prefixes a state line with the kind learned from the
// catalog, so mixed topic dumps stay readable.
func annotateState(topic string, payload []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return string(payload)
	}
	if name, ok := obj["device"].(string); ok {
		if kind, ok := deviceKinds[name]; ok {
			obj["kind"] = kind
		}
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return string(payload)
	}
	return string(out)
}

func main() {
	var broker, topic string
	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&topic, "topic", "fieldhub/#", "MQTT topic filter")
	flag.Parse()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("hub-monitor-%d", time.Now().UnixNano()))
	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		topic := msg.Topic()
		switch {
		case strings.HasSuffix(topic, "catalog"):
			line, err := readCatalogMessage(payload)
			if err != nil {
				fmt.Printf("%s %s (error: %v)\n", topic, string(payload), err)
				return
			}
			fmt.Printf("%s %s\n", topic, line)
		case strings.HasSuffix(topic, "state"):
			fmt.Printf("%s %s\n", topic, annotateState(topic, payload))
		default:
			fmt.Printf("%s %s\n", topic, string(payload))
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	fmt.Printf("Connected to MQTT broker %s, subscribing to %s...\n", broker, topic)

	if token := client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}

	// Wait for interrupt
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()
	<-ctx.Done()
	client.Disconnect(200)
}
