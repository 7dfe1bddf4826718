package eventBus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventNodeJoined       EventType = "NODE_JOINED"
	EventNodeLeft         EventType = "NODE_LEFT"
	EventMovedNode        EventType = "MOVED_NODE"
	EventBeaconSent       EventType = "BEACON_SENT"
	EventNeighborAdded    EventType = "NEIGHBOR_ADDED"
	EventNeighborExpired  EventType = "NEIGHBOR_EXPIRED"
	EventMessageSent      EventType = "MESSAGE_SENT"
	EventMessageForwarded EventType = "MESSAGE_FORWARDED"
	EventMessageDelivered EventType = "MESSAGE_DELIVERED"
	EventPerimeterEntered EventType = "PERIMETER_ENTERED"
	EventNoRoute          EventType = "NO_ROUTE"
	EventHopLimit         EventType = "HOP_LIMIT"
)

// Event holds details that the front end might need.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        EventType `json:"type"`
	NodeID      uint32    `json:"node_id"`
	OtherNodeID uint32    `json:"other_node_id,omitempty"`
	PacketID    uint32    `json:"packet_id,omitempty"`
	Hops        uint8     `json:"hops,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

// EventBus manages a set of subscribers and publishes events to them.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan Event, 0),
	}
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(e Event) {
	if eb == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		// Use a non-blocking send in case a subscriber is busy.
		select {
		case sub <- e:
		default:
			log.Warn().Str("type", string(e.Type)).Msg("dropping event: subscriber channel is full")
		}
	}
}

// Subscribe returns a new channel that will receive published events.
func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 100) // adjust buffer size as needed
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Unsubscribe removes ch and closes it.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscriber channel so consumers ranging over them exit.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, sub := range eb.subscribers {
		close(sub)
	}
	eb.subscribers = nil
}
