package packet

import (
	"bytes"
	"strings"
	"testing"
)

func TestBeaconPacket(t *testing.T) {
	pkt, pid, err := CreateBeaconPacket(42, 12.5, -3, 7.25, 99)
	if err != nil {
		t.Fatalf("CreateBeaconPacket: %v", err)
	}
	if pid != 99 {
		t.Fatalf("packet id = %d, want 99", pid)
	}

	bh, body, err := DeserialiseBeaconPacket(pkt)
	if err != nil {
		t.Fatalf("DeserialiseBeaconPacket: %v", err)
	}
	if bh.DestNodeID != BROADCAST_ADDR || bh.SrcNodeID != 42 || bh.PacketType != PKT_BEACON {
		t.Fatalf("header = %+v", bh)
	}
	if body.X != 12.5 || body.Y != -3 || body.Timestamp != 7.25 {
		t.Fatalf("body = %+v", body)
	}
}

func TestDataPacketHeaderIsLittleEndian(t *testing.T) {
	pkt, _, err := CreateDataPacket(0x01020304, 7, 3, DataBody{FinalDestID: 9}, 0x02, 5)
	if err != nil {
		t.Fatalf("CreateDataPacket: %v", err)
	}
	if !bytes.Equal(pkt[4:8], []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Fatalf("src bytes = % x", pkt[4:8])
	}
	if pkt[12] != PKT_DATA || pkt[13] != 0x02 || pkt[14] != 3 {
		t.Fatalf("type/flags/hops = %d/%d/%d", pkt[12], pkt[13], pkt[14])
	}
}

func TestDataPacketBody(t *testing.T) {
	in := DataBody{FinalDestID: 9, OriginNodeID: 1, DestX: 100, DestY: 50.5, Planar: "RNG", Payload: []byte("hello")}
	pkt, _, err := CreateDataPacket(1, 2, 0, in, 0)
	if err != nil {
		t.Fatalf("CreateDataPacket: %v", err)
	}
	bh, out, err := DeserialiseDataPacket(pkt)
	if err != nil {
		t.Fatalf("DeserialiseDataPacket: %v", err)
	}
	if bh.DestNodeID != 2 {
		t.Fatalf("next hop = %d, want 2", bh.DestNodeID)
	}
	if out.FinalDestID != 9 || out.DestX != 100 || out.DestY != 50.5 || out.Planar != "RNG" || string(out.Payload) != "hello" {
		t.Fatalf("body = %+v", out)
	}
}

func TestDataPacketTruncatesPayload(t *testing.T) {
	big := []byte(strings.Repeat("x", 1000))
	pkt, _, err := CreateDataPacket(1, 2, 0, DataBody{Payload: big}, 0)
	if err != nil {
		t.Fatalf("CreateDataPacket: %v", err)
	}
	if len(pkt) > MaxPacketSize {
		t.Fatalf("packet is %d B, over %d", len(pkt), MaxPacketSize)
	}
}

func TestDeserialiseRejectsWrongType(t *testing.T) {
	pkt, _, _ := CreateBeaconPacket(1, 0, 0, 0)
	if _, _, err := DeserialiseDataPacket(pkt); err == nil {
		t.Fatalf("beacon decoded as data")
	}
	if _, _, err := DeserialiseBeaconPacket(pkt[:10]); err == nil {
		t.Fatalf("short buffer decoded")
	}
}
