package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/mirror"
)

// RunConsoleMQTT prints every mirrored sample and arming change until
// interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialised")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	telemetryTopic := cfg.MQTTTopicPrefix + "/telemetry/+"
	token := client.Subscribe(telemetryTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r drone.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: telemetry unmarshal error: %v", err)
			return
		}
		fmt.Println(formatReport(r))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", telemetryTopic)

	armedTopic := mirror.ArmedTopic(cfg.MQTTTopicPrefix)
	token = client.Subscribe(armedTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r drone.ArmedReport
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: armed unmarshal error: %v", err)
			return
		}
		fmt.Printf("[ARMED] %v at %s\n", r.Armed, r.Timestamp)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", armedTopic)

	// Wait for Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("console: shutting down")
	return nil
}

// formatReport prints fields in the category's wire order, falling back to
// name order for categories this build does not know.
func formatReport(r drone.Report) string {
	names := make([]string, 0, len(r.Fields))
	if cat, err := drone.ParseCategory(r.Category); err == nil {
		names = append(names, cat.Fields()...)
	} else {
		for name := range r.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(r.Category))
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%g", name, r.Fields[name])
	}
	fmt.Fprintf(&b, " (%.1fms)", r.ElapsedMS)
	return b.String()
}
