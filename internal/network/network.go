package network

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
)

// DefaultRange is the maximum distance for direct radio contact.
const DefaultRange = 250.0

var (
	ErrDuplicateNode = errors.New("network: node id already joined")
	ErrClosed        = errors.New("network: closed")
)

type joinRequest struct {
	node   mesh.INode
	result chan error
}

type NetworkImpl struct {
	mu       sync.RWMutex
	nodes    map[uint32]mesh.INode
	maxRange float64

	joinRequests  chan joinRequest
	leaveRequests chan uint32
	done          chan struct{}
	closeOnce     sync.Once

	bus *eventBus.EventBus
}

// NewNetwork creates a new instance of the network. A non-positive maxRange
// selects DefaultRange.
func NewNetwork(bus *eventBus.EventBus, maxRange float64) *NetworkImpl {
	if maxRange <= 0 {
		maxRange = DefaultRange
	}
	return &NetworkImpl{
		nodes:         make(map[uint32]mesh.INode),
		maxRange:      maxRange,
		joinRequests:  make(chan joinRequest),
		leaveRequests: make(chan uint32),
		done:          make(chan struct{}),
		bus:           bus,
	}
}

// Run is the main goroutine for the network, handling joins/leaves.
func (net *NetworkImpl) Run() {
	for {
		select {
		case req := <-net.joinRequests:
			req.result <- net.addNode(req.node)
		case nodeID := <-net.leaveRequests:
			net.removeNode(nodeID)
		case <-net.done:
			return
		}
	}
}

// Close stops Run. Nodes still joined keep running until LeaveAll.
func (net *NetworkImpl) Close() {
	net.closeOnce.Do(func() { close(net.done) })
}

// Join adds a node to the network and starts it. A node whose ID is already
// present is not started and ErrDuplicateNode is returned.
func (net *NetworkImpl) Join(n mesh.INode) error {
	req := joinRequest{node: n, result: make(chan error, 1)}
	select {
	case net.joinRequests <- req:
	case <-net.done:
		return ErrClosed
	}
	return <-req.result
}

// Leave removes a node from the network by ID.
func (net *NetworkImpl) Leave(nodeID uint32) {
	select {
	case net.leaveRequests <- nodeID:
	case <-net.done:
	}
}

// LeaveAll stops every node directly, without going through Run.
func (net *NetworkImpl) LeaveAll() {
	net.mu.RLock()
	ids := make([]uint32, 0, len(net.nodes))
	for id := range net.nodes {
		ids = append(ids, id)
	}
	net.mu.RUnlock()

	for _, id := range ids {
		net.removeNode(id)
	}
}

func (net *NetworkImpl) GetNode(nodeID uint32) (mesh.INode, error) {
	net.mu.RLock()
	defer net.mu.RUnlock()
	if nd, ok := net.nodes[nodeID]; ok {
		return nd, nil
	}
	return nil, fmt.Errorf("node %d not found", nodeID)
}

func (net *NetworkImpl) Nodes() []mesh.INode {
	net.mu.RLock()
	defer net.mu.RUnlock()
	out := make([]mesh.INode, 0, len(net.nodes))
	for _, nd := range net.nodes {
		out = append(out, nd)
	}
	return out
}

// BroadcastMessage delivers pkt to every node within radio range of sender.
func (net *NetworkImpl) BroadcastMessage(pkt []byte, sender mesh.INode) {
	net.mu.RLock()
	defer net.mu.RUnlock()

	for id, nd := range net.nodes {
		if id == sender.GetID() {
			continue
		}
		if net.IsInRange(sender, nd) {
			deliver(nd, pkt)
		}
	}
}

// UnicastMessage delivers pkt to node to if it exists and is in range.
func (net *NetworkImpl) UnicastMessage(pkt []byte, sender mesh.INode, to uint32) error {
	net.mu.RLock()
	defer net.mu.RUnlock()

	receiver, ok := net.nodes[to]
	if !ok {
		return fmt.Errorf("node %d tried to send to unknown node %d", sender.GetID(), to)
	}
	if !net.IsInRange(sender, receiver) {
		return fmt.Errorf("node %d is out of range for node %d", to, sender.GetID())
	}
	deliver(receiver, pkt)
	return nil
}

func deliver(nd mesh.INode, pkt []byte) {
	// copy so receivers never share a buffer
	buf := make([]byte, len(pkt))
	copy(buf, pkt)
	select {
	case nd.GetMessageChan() <- buf:
	default:
		log.Warn().Uint32("node", nd.GetID()).Msg("receive queue full, dropping packet")
	}
}

// addNode inserts the node into the map, starts its goroutine, and triggers a
// beacon so neighbors learn its position.
func (net *NetworkImpl) addNode(n mesh.INode) error {
	net.mu.Lock()
	if _, exists := net.nodes[n.GetID()]; exists {
		net.mu.Unlock()
		log.Warn().Uint32("node", n.GetID()).Msg("join rejected: id already in use")
		return fmt.Errorf("join node %d: %w", n.GetID(), ErrDuplicateNode)
	}
	net.nodes[n.GetID()] = n
	net.mu.Unlock()

	log.Info().Uint32("node", n.GetID()).Msg("joining network")
	pos := n.GetPosition()
	net.bus.Publish(eventBus.Event{Type: eventBus.EventNodeJoined, NodeID: n.GetID(), X: pos.X, Y: pos.Y})
	go n.Run(net)

	n.BroadcastBeacon(net)
	return nil
}

// removeNode signals the node to stop and removes it from the map.
func (net *NetworkImpl) removeNode(nodeID uint32) {
	net.mu.Lock()
	nd, ok := net.nodes[nodeID]
	if ok {
		delete(net.nodes, nodeID)
	}
	net.mu.Unlock()
	if !ok {
		return
	}

	close(nd.GetQuitChan())
	log.Info().Uint32("node", nodeID).Msg("leaving network")
	net.bus.Publish(eventBus.Event{Type: eventBus.EventNodeLeft, NodeID: nodeID})
}

// Check if a node is in range to recieve signal from another node
func (net *NetworkImpl) IsInRange(node1 mesh.INode, node2 mesh.INode) bool {
	return node1.GetPosition().DistanceTo(node2.GetPosition()) <= net.maxRange
}
