package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTManager manages the MQTT connection and message routing.
type MQTTManager struct {
	client mqtt.Client
}

// New creates and connects a new MQTTManager.
func New(broker, clientID string) (*MQTTManager, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		log.Debug().Str("topic", msg.Topic()).Msg("mqtt message without handler")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
	})

	manager := &MQTTManager{client: mqtt.NewClient(opts)}
	if token := manager.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.Info().Str("broker", broker).Str("client", clientID).Msg("mqtt connected")
	return manager, nil
}

// Subscribe subscribes to a specific topic with the desired QoS.
func (m *MQTTManager) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) error {
	token := m.client.Subscribe(topic, qos, callback)
	token.Wait()
	return token.Error()
}

// Publish publishes a message to the given topic.
func (m *MQTTManager) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	token := m.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Disconnect performs a clean disconnect from the MQTT broker.
func (m *MQTTManager) Disconnect() {
	m.client.Disconnect(250)
}
