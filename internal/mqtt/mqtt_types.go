package mqtt

const (
	TopicBeacon   = "gpsr/beacon"
	TopicRegister = "gpsr/register"
)

// MqttBeaconPayload is a position beacon heard by a physical device.
// ObserverID names the simulated node that received it.
type MqttBeaconPayload struct {
	NodeID     uint32  `json:"node_id"`
	ObserverID uint32  `json:"observer_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Timestamp  float64 `json:"ts,omitempty"`
}

// MqttNodePayload represents the JSON payload for registering, moving or removing a node.
type MqttNodePayload struct {
	NodeID uint32  `json:"node_id"`
	Event  string  `json:"event"` // register | move | remove
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
}
