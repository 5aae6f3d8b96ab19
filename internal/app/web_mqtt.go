package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/mirror"
)

// RunWebMQTT serves the dashboard on a machine other than the bridge host,
// rebuilding the telemetry state from the MQTT mirror.
func RunWebMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialised")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}
	port := cfg.WebServerPort
	if port == 0 {
		port = 8080
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-web")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	state := drone.NewState()
	hub := NewHub()

	subs := []struct {
		topic  string
		handle func([]byte) error
	}{
		{cfg.MQTTTopicPrefix + "/telemetry/+", telemetryFromMirror(state, hub)},
		{mirror.ArmedTopic(cfg.MQTTTopicPrefix), armedFromMirror(state)},
	}
	for _, sub := range subs {
		handle := sub.handle
		token := client.Subscribe(sub.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				log.Printf("web: %s: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", sub.topic)
	}

	status := func() Status {
		s := Status{Armed: state.Armed(), ArmingState: "disarmed"}
		if s.Armed {
			s.ArmingState = "armed"
		}
		return s
	}
	return RunWeb(ctx, ":"+strconv.Itoa(port), NewWebHandler(state, hub, status, nil))
}

func telemetryFromMirror(state *drone.State, hub *Hub) func([]byte) error {
	return func(payload []byte) error {
		var r drone.Report
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("telemetry unmarshal error: %w", err)
		}
		s, err := drone.SampleFromReport(r)
		if err != nil {
			return err
		}
		state.Set(s)
		return hub.Publish(s)
	}
}

func armedFromMirror(state *drone.State) func([]byte) error {
	return func(payload []byte) error {
		var r drone.ArmedReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("armed unmarshal error: %w", err)
		}
		state.SetArmed(r.Armed)
		return nil
	}
}
