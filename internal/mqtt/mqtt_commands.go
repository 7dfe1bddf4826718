package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/node"
	"gpsr-simulation/internal/packet"
)

// HandleBeacon turns a beacon heard by a physical device into a beacon
// packet on the observing node's queue, so it refreshes the neighbor table
// exactly like a radio beacon would.
func HandleBeacon(net mesh.INetwork, raw []byte) error {
	var payload MqttBeaconPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse beacon: %w", err)
	}
	if payload.NodeID == payload.ObserverID {
		return fmt.Errorf("beacon from node %d observed by itself", payload.NodeID)
	}

	observer, err := net.GetNode(payload.ObserverID)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	pkt, _, err := packet.CreateBeaconPacket(payload.NodeID, payload.X, payload.Y, payload.Timestamp)
	if err != nil {
		return err
	}

	select {
	case observer.GetMessageChan() <- pkt:
		return nil
	default:
		return fmt.Errorf("node %d inbox full", payload.ObserverID)
	}
}

// HandleNode registers, moves or removes a node on behalf of a device.
func HandleNode(net mesh.INetwork, bus *eventBus.EventBus, cfg node.Config, raw []byte) error {
	var payload MqttNodePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse node payload: %w", err)
	}

	switch payload.Event {
	case "register":
		if err := net.Join(node.NewNodeWithID(payload.NodeID, payload.X, payload.Y, bus, cfg)); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		log.Info().Uint32("node", payload.NodeID).Msg("device registered")

	case "move":
		nd, err := net.GetNode(payload.NodeID)
		if err != nil {
			return err
		}
		nd.SetPosition(mesh.CreateCoordinates(payload.X, payload.Y))
		bus.Publish(eventBus.Event{Type: eventBus.EventMovedNode, NodeID: payload.NodeID, X: payload.X, Y: payload.Y})

	case "remove":
		net.Leave(payload.NodeID)
		log.Info().Uint32("node", payload.NodeID).Msg("device removed")

	default:
		return fmt.Errorf("unknown event type %q", payload.Event)
	}
	return nil
}

// ProcessBeaconMessage handles messages coming from the "gpsr/beacon" topic.
func ProcessBeaconMessage(net mesh.INetwork) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := HandleBeacon(net, msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping mqtt beacon")
		}
	}
}

// ProcessNodeMessage handles messages coming from the "gpsr/register" topic.
func ProcessNodeMessage(net mesh.INetwork, bus *eventBus.EventBus, cfg node.Config) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := HandleNode(net, bus, cfg, msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping mqtt node command")
		}
	}
}

// Bridge subscribes the beacon and register topics.
func (m *MQTTManager) Bridge(net mesh.INetwork, bus *eventBus.EventBus, cfg node.Config) error {
	if err := m.Subscribe(TopicBeacon, 0, ProcessBeaconMessage(net)); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicBeacon, err)
	}
	if err := m.Subscribe(TopicRegister, 1, ProcessNodeMessage(net, bus, cfg)); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicRegister, err)
	}
	return nil
}
