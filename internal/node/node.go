package node

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/neighbor"
	"gpsr-simulation/internal/packet"
	"gpsr-simulation/internal/routing"
)

// Config holds the per-node routing options.
type Config struct {
	Planarization   routing.Mode
	NeighborTimeout float64
	MaxHops         uint8
	// Clock returns the current simulation time in the same units as
	// NeighborTimeout.
	Clock func() float64
}

func (c Config) withDefaults() Config {
	if c.NeighborTimeout <= 0 {
		c.NeighborTimeout = neighbor.DefaultTimeout
	}
	if c.MaxHops == 0 {
		c.MaxHops = packet.MAX_HOPS
	}
	if c.Clock == nil {
		start := time.Now()
		c.Clock = func() float64 { return time.Since(start).Seconds() }
	}
	return c
}

// nodeImpl is a concrete implementation of INode.
type nodeImpl struct {
	id       uint32
	messages chan []byte
	quit     chan struct{}

	router *routing.GPSRRouter
	cfg    Config

	eventBus *eventBus.EventBus
}

// NewNode creates a new Node with a random non-zero ID not yet used in net.
// A nil net only rules out zero.
func NewNode(net mesh.INetwork, x, y float64, bus *eventBus.EventBus, cfg Config) mesh.INode {
	return NewNodeWithID(freeID(net), x, y, bus, cfg)
}

func freeID(net mesh.INetwork) uint32 {
	for {
		id := uint32(rand.Int31())
		if id == 0 {
			continue
		}
		if net != nil {
			if _, err := net.GetNode(id); err == nil {
				continue
			}
		}
		return id
	}
}

// NewNodeWithID creates a new Node with a given ID.
func NewNodeWithID(id uint32, x, y float64, bus *eventBus.EventBus, cfg Config) mesh.INode {
	log.Debug().Uint32("node", id).Float64("x", x).Float64("y", y).Msg("created node")
	return &nodeImpl{
		id:       id,
		messages: make(chan []byte, 64),
		quit:     make(chan struct{}),
		router:   routing.NewGPSRRouter(routing.Context{ID: id, Position: geometry.Pt(x, y)}),
		cfg:      cfg.withDefaults(),
		eventBus: bus,
	}
}

// GetID returns the node's ID.
func (n *nodeImpl) GetID() uint32 {
	return n.id
}

// Run is the main goroutine for the node, processing incoming packets.
func (n *nodeImpl) Run(net mesh.INetwork) {
	log.Debug().Uint32("node", n.id).Msg("started")
	defer log.Debug().Uint32("node", n.id).Msg("stopped")

	for {
		select {
		case msg := <-n.messages:
			n.HandleMessage(net, msg)
		case <-n.quit:
			return
		}
	}
}

// BroadcastBeacon announces the node's current position to everyone in range.
func (n *nodeImpl) BroadcastBeacon(net mesh.INetwork) {
	pos := n.GetPosition()
	pkt, pid, err := packet.CreateBeaconPacket(n.id, pos.X, pos.Y, n.cfg.Clock())
	if err != nil {
		log.Error().Err(err).Uint32("node", n.id).Msg("failed to create beacon")
		return
	}
	n.eventBus.Publish(eventBus.Event{Type: eventBus.EventBeaconSent, NodeID: n.id, PacketID: pid, X: pos.X, Y: pos.Y})
	net.BroadcastMessage(pkt, n)
}

// ExpireNeighbors drops neighbors whose last beacon is older than the timeout.
func (n *nodeImpl) ExpireNeighbors() {
	for _, id := range n.router.ExpireNeighbors(n.cfg.Clock(), n.cfg.NeighborTimeout) {
		log.Debug().Uint32("node", n.id).Uint32("neighbor", id).Msg("neighbor expired")
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventNeighborExpired, NodeID: n.id, OtherNodeID: id})
	}
}

// SendData originates a DATA packet towards destID located at dest.
func (n *nodeImpl) SendData(net mesh.INetwork, destID uint32, dest mesh.Coordinates, payload string) error {
	body := packet.DataBody{
		FinalDestID:  destID,
		OriginNodeID: n.id,
		DestX:        dest.X,
		DestY:        dest.Y,
		Planar:       n.cfg.Planarization.String(),
		Payload:      []byte(payload),
	}
	pid := uint32(rand.Int31())
	n.eventBus.Publish(eventBus.Event{Type: eventBus.EventMessageSent, NodeID: n.id, OtherNodeID: destID, PacketID: pid})

	if destID == n.id {
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventMessageDelivered, NodeID: n.id, PacketID: pid})
		return nil
	}
	return n.forward(net, body, 0, pid)
}

// HandleMessage processes an incoming packet.
func (n *nodeImpl) HandleMessage(net mesh.INetwork, receivedPacket []byte) {
	var bh packet.BaseHeader
	if err := bh.DeserialiseBaseHeader(receivedPacket); err != nil {
		log.Warn().Err(err).Uint32("node", n.id).Msg("failed to deserialise BaseHeader")
		return
	}
	switch bh.PacketType {
	case packet.PKT_BEACON:
		n.handleBeacon(receivedPacket)
	case packet.PKT_DATA:
		if bh.DestNodeID != n.id {
			return // overheard
		}
		n.handleData(net, receivedPacket)
	default:
		log.Warn().Uint32("node", n.id).Uint8("type", bh.PacketType).Uint32("from", bh.SrcNodeID).Msg("unknown packet type")
	}
}

func (n *nodeImpl) handleBeacon(buf []byte) {
	bh, body, err := packet.DeserialiseBeaconPacket(buf)
	if err != nil {
		log.Warn().Err(err).Uint32("node", n.id).Msg("bad beacon")
		return
	}
	_, known := n.router.Neighbor(bh.SrcNodeID)
	if err := n.router.UpsertNeighbor(bh.SrcNodeID, body.X, body.Y, n.cfg.Clock()); err != nil {
		log.Warn().Err(err).Msg("beacon rejected")
		return
	}
	if !known {
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventNeighborAdded, NodeID: n.id, OtherNodeID: bh.SrcNodeID, X: body.X, Y: body.Y})
	}
}

func (n *nodeImpl) handleData(net mesh.INetwork, buf []byte) {
	bh, body, err := packet.DeserialiseDataPacket(buf)
	if err != nil {
		log.Warn().Err(err).Uint32("node", n.id).Msg("bad data packet")
		return
	}
	if body.FinalDestID == n.id {
		log.Info().Uint32("node", n.id).Uint32("origin", body.OriginNodeID).Uint8("hops", bh.HopCount).Msg("data delivered")
		n.eventBus.Publish(eventBus.Event{
			Type:        eventBus.EventMessageDelivered,
			NodeID:      n.id,
			OtherNodeID: body.OriginNodeID,
			PacketID:    bh.PacketID,
			Hops:        bh.HopCount,
			Payload:     string(body.Payload),
		})
		return
	}
	if bh.HopCount >= n.cfg.MaxHops {
		log.Info().Uint32("node", n.id).Uint32("packet", bh.PacketID).Msg("hop limit reached, dropping")
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventHopLimit, NodeID: n.id, PacketID: bh.PacketID, Hops: bh.HopCount})
		return
	}
	if err := n.forward(net, body, bh.HopCount, bh.PacketID); err != nil && !errors.Is(err, routing.ErrNoRoute) {
		log.Warn().Err(err).Msg("relay failed")
	}
}

// forward picks the next hop for body and unicasts one more hop of it.
func (n *nodeImpl) forward(net mesh.INetwork, body packet.DataBody, hops uint8, pid uint32) error {
	mode, err := routing.ParseMode(body.Planar)
	if err != nil {
		mode = n.cfg.Planarization
	}

	decision, err := n.router.Decide(geometry.Pt(body.DestX, body.DestY), mode)
	if err != nil {
		if errors.Is(err, routing.ErrNoRoute) {
			log.Info().Uint32("node", n.id).Uint32("dest", body.FinalDestID).Msg("no route, dropping")
			n.eventBus.Publish(eventBus.Event{Type: eventBus.EventNoRoute, NodeID: n.id, OtherNodeID: body.FinalDestID, PacketID: pid})
		}
		return fmt.Errorf("node %d: forward packet %d: %w", n.id, pid, err)
	}
	switch decision.Forwarding {
	case routing.ForwardGreedy:
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventMessageForwarded, NodeID: n.id, OtherNodeID: decision.NextHop, PacketID: pid})
	case routing.ForwardPerimeter:
		n.eventBus.Publish(eventBus.Event{Type: eventBus.EventPerimeterEntered, NodeID: n.id, OtherNodeID: decision.NextHop, PacketID: pid})
	}

	pkt, _, err := packet.CreateDataPacket(n.id, decision.NextHop, hops+1, body, 0, pid)
	if err != nil {
		return fmt.Errorf("node %d: build packet: %w", n.id, err)
	}
	log.Debug().
		Uint32("node", n.id).
		Uint32("dest", body.FinalDestID).
		Uint32("next_hop", decision.NextHop).
		Str("forwarding", decision.Forwarding.String()).
		Msg("forwarding")
	if err := net.UnicastMessage(pkt, n, decision.NextHop); err != nil {
		// neighbor moved out of range since its last beacon
		return fmt.Errorf("node %d: unicast: %w", n.id, err)
	}
	return nil
}

func (n *nodeImpl) GetMessageChan() chan []byte {
	return n.messages
}

func (n *nodeImpl) GetQuitChan() chan struct{} {
	return n.quit
}

func (n *nodeImpl) Neighbors() []neighbor.Record {
	return n.router.Neighbors()
}

func (n *nodeImpl) GetPosition() mesh.Coordinates {
	p := n.router.Context().Position
	return mesh.CreateCoordinates(p.X, p.Y)
}

func (n *nodeImpl) SetPosition(coord mesh.Coordinates) {
	n.router.SetPosition(coord.Point())
}

// PrintNodeDetails prints the details of a node in a nicely formatted way
func (n *nodeImpl) PrintNodeDetails() {
	pos := n.GetPosition()
	fmt.Println("====================================")
	fmt.Println("Node Details:")
	fmt.Printf("  ID:          %d\n", n.id)
	fmt.Printf("  Coordinates: (X: %.2f, Y: %.2f)\n", pos.X, pos.Y)
	fmt.Printf("  Messages:    %d messages in queue\n", len(n.messages))
	fmt.Printf("  Planar:      %s\n", n.cfg.Planarization)
	n.router.PrintRoutingTable()
	fmt.Println("====================================")
}

func (n *nodeImpl) GetRouter() routing.IRouter {
	return n.router
}
