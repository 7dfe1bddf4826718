package packet

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/vmihailenco/msgpack/v5"
)

// Packet Types
const (
	PKT_BEACON uint8 = 0x01 //1
	PKT_DATA   uint8 = 0x04 //4
)

const (
	MaxPacketSize = 255 // bytes – LoRa airtime optimiser

	BROADCAST_ADDR uint32 = 0xFFFFFFFF // everyone hears

	MAX_HOPS = 32 // safety cap to avoid routing loops

	baseHeaderSize = 16
)

type BaseHeader struct {
	DestNodeID uint32 // destination of the hop not the route
	SrcNodeID  uint32
	PacketID   uint32
	PacketType uint8
	Flags      uint8
	HopCount   uint8
	Reserved   uint8
}

// BeaconBody announces the sender's position.
type BeaconBody struct {
	X         float64 `msgpack:"x"`
	Y         float64 `msgpack:"y"`
	Timestamp float64 `msgpack:"ts"`
}

// DataBody carries the geographic destination alongside the payload so any
// relay can make its own forwarding decision.
type DataBody struct {
	FinalDestID  uint32  `msgpack:"dst"`
	OriginNodeID uint32  `msgpack:"org"`
	DestX        float64 `msgpack:"dx"`
	DestY        float64 `msgpack:"dy"`
	Planar       string  `msgpack:"pl"`
	Payload      []byte  `msgpack:"p"`
}

func (bh *BaseHeader) SerialiseBaseHeader() ([]byte, error) {
	buf := make([]byte, baseHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], bh.DestNodeID)
	binary.LittleEndian.PutUint32(buf[4:8], bh.SrcNodeID)
	binary.LittleEndian.PutUint32(buf[8:12], bh.PacketID)
	buf[12] = bh.PacketType
	buf[13] = bh.Flags
	buf[14] = bh.HopCount
	buf[15] = bh.Reserved
	return buf, nil
}

func (bh *BaseHeader) DeserialiseBaseHeader(buf []byte) error {
	if len(buf) < baseHeaderSize {
		return fmt.Errorf("buffer too short for BaseHeader")
	}
	bh.DestNodeID = binary.LittleEndian.Uint32(buf[0:4])
	bh.SrcNodeID = binary.LittleEndian.Uint32(buf[4:8])
	bh.PacketID = binary.LittleEndian.Uint32(buf[8:12])
	bh.PacketType = buf[12]
	bh.Flags = buf[13]
	bh.HopCount = buf[14]
	bh.Reserved = buf[15]
	return nil
}

func createPacketID() uint32 {
	return uint32(rand.Int31())
}

func chooseID(ids ...uint32) uint32 {
	if len(ids) > 0 {
		return ids[0]
	}
	return createPacketID()
}

func build(bh BaseHeader, body any) ([]byte, error) {
	bhBytes, err := bh.SerialiseBaseHeader()
	if err != nil {
		return nil, fmt.Errorf("error serialising BaseHeader: %w", err)
	}
	bodyBytes, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error serialising body: %w", err)
	}
	total := len(bhBytes) + len(bodyBytes)
	if total > MaxPacketSize {
		return nil, fmt.Errorf("packet too big (%d B)", total)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, bhBytes...)
	return append(buf, bodyBytes...), nil
}

// CreateBeaconPacket builds a broadcast beacon for srcID at (x, y).
func CreateBeaconPacket(srcID uint32, x, y, ts float64, packetID ...uint32) ([]byte, uint32, error) {
	pid := chooseID(packetID...)
	bh := BaseHeader{
		DestNodeID: BROADCAST_ADDR,
		SrcNodeID:  srcID,
		PacketID:   pid,
		PacketType: PKT_BEACON,
	}
	pkt, err := build(bh, BeaconBody{X: x, Y: y, Timestamp: ts})
	if err != nil {
		return nil, 0, err
	}
	return pkt, pid, nil
}

// CreateDataPacket builds one hop of a DATA packet, addressed to nextHopID.
func CreateDataPacket(srcID, nextHopID uint32, numHops uint8, body DataBody, flags uint8, packetID ...uint32) ([]byte, uint32, error) {
	pid := chooseID(packetID...)
	bh := BaseHeader{
		DestNodeID: nextHopID,
		SrcNodeID:  srcID,
		PacketID:   pid,
		PacketType: PKT_DATA,
		Flags:      flags,
		HopCount:   numHops,
	}

	overhead := baseHeaderSize + 64
	if len(body.Payload) > MaxPacketSize-overhead {
		body.Payload = body.Payload[:MaxPacketSize-overhead]
	}
	pkt, err := build(bh, body)
	if err != nil {
		return nil, 0, err
	}
	return pkt, pid, nil
}

func DeserialiseBeaconPacket(buf []byte) (bh BaseHeader, body BeaconBody, err error) {
	if err = bh.DeserialiseBaseHeader(buf); err != nil {
		return
	}
	if bh.PacketType != PKT_BEACON {
		err = fmt.Errorf("packet type %d is not a beacon", bh.PacketType)
		return
	}
	if err = msgpack.Unmarshal(buf[baseHeaderSize:], &body); err != nil {
		err = fmt.Errorf("decode beacon body: %w", err)
	}
	return
}

func DeserialiseDataPacket(buf []byte) (bh BaseHeader, body DataBody, err error) {
	if err = bh.DeserialiseBaseHeader(buf); err != nil {
		return
	}
	if bh.PacketType != PKT_DATA {
		err = fmt.Errorf("packet type %d is not data", bh.PacketType)
		return
	}
	if err = msgpack.Unmarshal(buf[baseHeaderSize:], &body); err != nil {
		err = fmt.Errorf("decode data body: %w", err)
	}
	return
}
