package node

import (
	"errors"
	"fmt"
	"testing"

	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/routing"
)

// syncNetwork delivers packets by calling HandleMessage inline so a whole
// multi-hop exchange finishes before the sending call returns.
type syncNetwork struct {
	nodes    map[uint32]mesh.INode
	maxRange float64
}

func newSyncNetwork(maxRange float64, nodes ...mesh.INode) *syncNetwork {
	net := &syncNetwork{nodes: make(map[uint32]mesh.INode), maxRange: maxRange}
	for _, n := range nodes {
		net.nodes[n.GetID()] = n
	}
	return net
}

func (s *syncNetwork) Run() {}

func (s *syncNetwork) Join(n mesh.INode) error {
	if _, ok := s.nodes[n.GetID()]; ok {
		return fmt.Errorf("node %d already joined", n.GetID())
	}
	s.nodes[n.GetID()] = n
	return nil
}

func (s *syncNetwork) Leave(nodeID uint32) { delete(s.nodes, nodeID) }

func (s *syncNetwork) LeaveAll() { s.nodes = map[uint32]mesh.INode{} }

func (s *syncNetwork) Nodes() []mesh.INode { return nil }

func (s *syncNetwork) inRange(a, b mesh.INode) bool {
	return a.GetPosition().DistanceTo(b.GetPosition()) <= s.maxRange
}

func (s *syncNetwork) GetNode(nodeID uint32) (mesh.INode, error) {
	if n, ok := s.nodes[nodeID]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("node %d not found", nodeID)
}

func (s *syncNetwork) BroadcastMessage(pkt []byte, sender mesh.INode) {
	for id, n := range s.nodes {
		if id != sender.GetID() && s.inRange(sender, n) {
			n.HandleMessage(s, pkt)
		}
	}
}

func (s *syncNetwork) UnicastMessage(pkt []byte, sender mesh.INode, to uint32) error {
	n, ok := s.nodes[to]
	if !ok || !s.inRange(sender, n) {
		return fmt.Errorf("node %d unreachable", to)
	}
	n.HandleMessage(s, pkt)
	return nil
}

func fixedClock(t *float64) func() float64 {
	return func() float64 { return *t }
}

func drain(ch chan eventBus.Event) map[eventBus.EventType]int {
	counts := make(map[eventBus.EventType]int)
	for {
		select {
		case ev := <-ch:
			counts[ev.Type]++
		default:
			return counts
		}
	}
}

func beaconAll(net mesh.INetwork, nodes ...mesh.INode) {
	for _, n := range nodes {
		n.BroadcastBeacon(net)
	}
}

func TestBeaconsPopulateNeighbors(t *testing.T) {
	now := 0.0
	cfg := Config{Clock: fixedClock(&now)}
	a := NewNodeWithID(1, 0, 0, nil, cfg)
	b := NewNodeWithID(2, 100, 0, nil, cfg)
	c := NewNodeWithID(3, 500, 0, nil, cfg)
	net := newSyncNetwork(150, a, b, c)

	beaconAll(net, a, b, c)

	if got := a.Neighbors(); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("a neighbors = %+v, want [2]", got)
	}
	if got := c.Neighbors(); len(got) != 0 {
		t.Fatalf("c neighbors = %+v, want none", got)
	}
}

func TestExpireNeighborsUsesTimeout(t *testing.T) {
	now := 0.0
	bus := eventBus.NewEventBus()
	events := bus.Subscribe()
	cfg := Config{Clock: fixedClock(&now), NeighborTimeout: 20}
	a := NewNodeWithID(1, 0, 0, bus, cfg)
	b := NewNodeWithID(2, 10, 0, bus, cfg)
	net := newSyncNetwork(150, a, b)
	b.BroadcastBeacon(net)

	now = 15
	a.ExpireNeighbors()
	if len(a.Neighbors()) != 1 {
		t.Fatalf("neighbor expired too early")
	}
	now = 25
	a.ExpireNeighbors()
	if len(a.Neighbors()) != 0 {
		t.Fatalf("neighbor survived past timeout")
	}
	if got := drain(events)[eventBus.EventNeighborExpired]; got != 1 {
		t.Fatalf("NEIGHBOR_EXPIRED events = %d, want 1", got)
	}
}

func TestMultiHopGreedyDelivery(t *testing.T) {
	now := 0.0
	bus := eventBus.NewEventBus()
	events := bus.Subscribe()
	cfg := Config{Clock: fixedClock(&now)}
	a := NewNodeWithID(1, 0, 0, bus, cfg)
	b := NewNodeWithID(2, 100, 0, bus, cfg)
	c := NewNodeWithID(3, 200, 0, bus, cfg)
	net := newSyncNetwork(150, a, b, c)
	beaconAll(net, a, b, c)
	drain(events)

	if err := a.SendData(net, 3, c.GetPosition(), "reading=42"); err != nil {
		t.Fatalf("SendData: %v", err)
	}

	var delivered *eventBus.Event
	for len(events) > 0 {
		ev := <-events
		if ev.Type == eventBus.EventMessageDelivered {
			delivered = &ev
		}
	}
	if delivered == nil {
		t.Fatalf("packet was not delivered")
	}
	if delivered.NodeID != 3 || delivered.Hops != 2 || delivered.Payload != "reading=42" {
		t.Fatalf("delivered event = %+v", *delivered)
	}
}

func TestSendDataNoNeighbors(t *testing.T) {
	now := 0.0
	bus := eventBus.NewEventBus()
	events := bus.Subscribe()
	a := NewNodeWithID(1, 5, 5, bus, Config{Clock: fixedClock(&now)})
	net := newSyncNetwork(150, a)

	err := a.SendData(net, 9, mesh.CreateCoordinates(100, 100), "x")
	if !errors.Is(err, routing.ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
	counts := drain(events)
	if counts[eventBus.EventNoRoute] != 1 {
		t.Fatalf("NO_ROUTE events = %d, want 1", counts[eventBus.EventNoRoute])
	}
	// the failed perimeter attempt did not forward anything
	if counts[eventBus.EventPerimeterEntered] != 0 {
		t.Fatalf("PERIMETER_ENTERED events = %d, want 0", counts[eventBus.EventPerimeterEntered])
	}
}

func TestNewNodePicksFreeID(t *testing.T) {
	now := 0.0
	net := newSyncNetwork(150)
	for i := 0; i < 50; i++ {
		n := NewNode(net, 0, 0, nil, Config{Clock: fixedClock(&now)})
		if n.GetID() == 0 {
			t.Fatalf("NewNode returned id 0")
		}
		if err := net.Join(n); err != nil {
			t.Fatalf("NewNode reused id %d: %v", n.GetID(), err)
		}
	}
}

func TestHopLimitStopsPingPong(t *testing.T) {
	now := 0.0
	bus := eventBus.NewEventBus()
	events := bus.Subscribe()
	cfg := Config{Clock: fixedClock(&now), MaxHops: 4}
	a := NewNodeWithID(1, 0, 0, bus, cfg)
	b := NewNodeWithID(2, -100, 0, bus, cfg)
	net := newSyncNetwork(150, a, b)
	beaconAll(net, a, b)
	drain(events)

	// the destination sits behind a hole: a has to detour through b, and b
	// greedily returns the packet to a
	if err := a.SendData(net, 3, mesh.CreateCoordinates(400, 0), "x"); err != nil {
		t.Fatalf("SendData: %v", err)
	}

	counts := drain(events)
	if counts[eventBus.EventHopLimit] != 1 {
		t.Fatalf("HOP_LIMIT events = %d, want 1", counts[eventBus.EventHopLimit])
	}
	if counts[eventBus.EventPerimeterEntered] == 0 {
		t.Fatalf("expected perimeter decisions, got %v", counts)
	}
	if counts[eventBus.EventMessageDelivered] != 0 {
		t.Fatalf("packet should not be delivered")
	}
}

func TestSetPositionIsBeaconed(t *testing.T) {
	now := 0.0
	cfg := Config{Clock: fixedClock(&now)}
	a := NewNodeWithID(1, 0, 0, nil, cfg)
	b := NewNodeWithID(2, 50, 0, nil, cfg)
	net := newSyncNetwork(150, a, b)

	b.SetPosition(mesh.CreateCoordinates(60, 10))
	b.BroadcastBeacon(net)

	got := a.Neighbors()
	if len(got) != 1 || got[0].Position.X != 60 || got[0].Position.Y != 10 {
		t.Fatalf("a neighbors = %+v, want 2 at (60,10)", got)
	}
}
