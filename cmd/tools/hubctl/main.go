package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fisaks/fieldhub/internal/hub"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  hubctl send --hub HUB --device DEVICE --action ACTION [value flags]

Required flags for 'send':
  --hub      (string)   Name of the hub
  --device   (string)   Name of the device
  --action   (string)   One of: open, close, stop, setPosition,
                        turnOn, turnOff, setTemperature

Value flags (per action):
  --position (int)      Target position 0-100 (setPosition)
  --tilt     (int)      Target tilt 0-100 (setPosition)
  --brightness (int)    Brightness 0-255 (turnOn)
  --temperature (float) Target temperature (setTemperature)

Optional flags:
  --broker   (string)   MQTT broker address (default: tcp://localhost:1883)

`)
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing command (e.g. send)\n")
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	if cmd != "send" {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	sendFlags := flag.NewFlagSet("send", flag.ExitOnError)
	hubName := sendFlags.String("hub", "", "Hub name (required)")
	device := sendFlags.String("device", "", "Device name (required)")
	action := sendFlags.String("action", "", "Command action (required)")
	position := sendFlags.Int("position", -1, "Target position 0-100")
	tilt := sendFlags.Int("tilt", -1, "Target tilt 0-100")
	brightness := sendFlags.Int("brightness", -1, "Brightness 0-255")
	temperature := sendFlags.Float64("temperature", -1, "Target temperature")
	broker := sendFlags.String("broker", "tcp://localhost:1883", "MQTT broker address")

	sendFlags.Usage = usage

	if err := sendFlags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	missing := false
	if *hubName == "" {
		fmt.Fprintf(os.Stderr, "--hub is required\n")
		missing = true
	}
	if *device == "" {
		fmt.Fprintf(os.Stderr, "--device is required\n")
		missing = true
	}
	switch *action {
	case hub.ActionOpen, hub.ActionClose, hub.ActionStop,
		hub.ActionTurnOn, hub.ActionTurnOff:
	case hub.ActionSetPosition:
		if *position < 0 && *tilt < 0 {
			fmt.Fprintf(os.Stderr, "setPosition needs --position and/or --tilt\n")
			missing = true
		}
	case hub.ActionSetTemperature:
		if *temperature < 0 {
			fmt.Fprintf(os.Stderr, "setTemperature needs --temperature\n")
			missing = true
		}
	case "":
		fmt.Fprintf(os.Stderr, "--action is required\n")
		missing = true
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		missing = true
	}
	if missing {
		usage()
		os.Exit(2)
	}

	payload := hub.Command{
		ID:     fmt.Sprintf("hubctl-%d", time.Now().UnixNano()),
		Device: *device,
		Action: *action,
	}
	if *position >= 0 {
		payload.Position = position
	}
	if *tilt >= 0 {
		payload.Tilt = tilt
	}
	if *brightness >= 0 {
		payload.Brightness = brightness
	}
	if *temperature >= 0 {
		payload.Temperature = temperature
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("hubctl-%d", time.Now().UnixNano()))
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT connect error: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("fieldhub/%s/device/%s/cmd", *hubName, *device)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON marshal error: %v\n", err)
		os.Exit(1)
	}
	token := client.Publish(topic, 1, false, payloadBytes)
	token.Wait()
	if token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT publish error: %v\n", token.Error())
		os.Exit(1)
	}

	fmt.Printf("Sent %s to %s via %s\n", *action, *device, topic)
}
