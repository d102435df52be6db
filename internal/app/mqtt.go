package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/spacenode/internal/env"
	log "github.com/sirupsen/logrus"
)

const mqttTimeout = 5 * time.Second

var errMQTTTimeout = errors.New("mqtt: timed out")

// connectMQTT opens a client connection with automatic reconnect.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("mqtt: connection to %s lost: %v", broker, err)
		})

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, err)
	}
	log.Infof("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// subscribeSamples decodes every message on topic as an env.Sample.
func subscribeSamples(client mqtt.Client, topic string, fn func(env.Sample)) error {
	err := wait(client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warnf("mqtt: sample unmarshal error on %s: %v", msg.Topic(), err)
			return
		}
		fn(s)
	}))
	if err != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, err)
	}
	log.Infof("subscribed to MQTT topic %s", topic)
	return nil
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(mqttTimeout) {
		return errMQTTTimeout
	}
	return token.Error()
}
