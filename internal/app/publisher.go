package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/spacenode/internal/env"
)

// MQTTPublisher sends samples as retained JSON messages.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher publishes on topic through an already connected client.
func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic}
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(s env.Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("json marshal error (env): %w", err)
	}
	if err := wait(p.client.Publish(p.topic, 0, true, payload)); err != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", p.topic, err)
	}
	return nil
}
