package mesh

import "gpsr-simulation/internal/neighbor"

type INode interface {
	GetID() uint32
	Run(net INetwork)
	SendData(net INetwork, destID uint32, dest Coordinates, payload string) error
	BroadcastBeacon(net INetwork)
	ExpireNeighbors()
	HandleMessage(net INetwork, receivedPacket []byte)
	GetMessageChan() chan []byte
	GetQuitChan() chan struct{}
	PrintNodeDetails()

	Neighbors() []neighbor.Record
	GetPosition() Coordinates
	SetPosition(coord Coordinates)
}
