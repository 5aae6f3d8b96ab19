// Package mirror republishes bridge samples and arming changes to MQTT so
// other tools can watch the drone without touching the serial link.
package mirror

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/msp_bridge/internal/drone"
)

// publishTimeout bounds how long a publish may block the sampler.
const publishTimeout = 2 * time.Second

// publisher is the part of mqtt.Client the mirror uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher mirrors samples to "<prefix>/telemetry/<category>" and the armed
// flag to "<prefix>/armed". Messages are retained so late subscribers see the
// latest value.
type Publisher struct {
	client publisher
	prefix string
	now    func() time.Time
}

// Connect dials the broker and returns a Publisher and its client.
func Connect(broker, clientID, prefix string) (*Publisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.Printf("mirror: connected to MQTT broker at %s", broker)
	return NewPublisher(client, prefix), client, nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client publisher, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix, now: time.Now}
}

// TelemetryTopic is where samples of cat are published.
func TelemetryTopic(prefix string, cat drone.Category) string {
	return prefix + "/telemetry/" + cat.String()
}

// ArmedTopic is where arming changes are published.
func ArmedTopic(prefix string) string {
	return prefix + "/armed"
}

// Publish implements sampler.Sink.
func (p *Publisher) Publish(s drone.Sample) error {
	payload, err := json.Marshal(s.Report())
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.Category(), err)
	}
	return p.send(TelemetryTopic(p.prefix, s.Category()), payload)
}

// PublishArmed publishes the armed flag.
func (p *Publisher) PublishArmed(armed bool) error {
	payload, err := json.Marshal(drone.ArmedReport{
		Armed:     armed,
		Timestamp: p.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.send(ArmedTopic(p.prefix), payload)
}

// WatchArmed publishes the current armed flag and every later change.
func (p *Publisher) WatchArmed(st *drone.State) {
	st.OnArmedChange(func(armed bool) {
		if err := p.PublishArmed(armed); err != nil {
			log.Printf("mirror: armed publish error: %v", err)
		}
	})
	if err := p.PublishArmed(st.Armed()); err != nil {
		log.Printf("mirror: armed publish error: %v", err)
	}
}

func (p *Publisher) send(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}
