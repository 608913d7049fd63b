package protocol

import (
    "encoding/hex"
    "fmt"
    "strings"
)

// Protocol constants shared by every node role.
const (
    // ProtocolVersion is carried in the first byte of every packet.
    ProtocolVersion uint8 = 1

    // MaxPacketSize bounds a full frame (header + payload) on the air.
    MaxPacketSize = 256
)

// Packet type tags (uint8, second byte of every frame).
const (
    TypeBeacon          uint8 = 0x01
    TypeData            uint8 = 0x02
    TypeAck             uint8 = 0x03
    TypeControl         uint8 = 0x04
    TypeServiceRequest  uint8 = 0x05
    TypeServiceResponse uint8 = 0x06
    TypePathEstablish   uint8 = 0x07
    TypePathConfirm     uint8 = 0x08
)

// NodeID is a 6-byte opaque node identifier with value equality.
type NodeID [6]byte

// Broadcast is the reserved all-0xFF destination.
var Broadcast = NodeID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// IsBroadcast reports whether the id is the reserved broadcast value.
func (id NodeID) IsBroadcast() bool { return id == Broadcast }

// String renders the id MAC-style for logs.
func (id NodeID) String() string {
    return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", id[0], id[1], id[2], id[3], id[4], id[5])
}

// ParseNodeID parses a 12-hex-digit id, with or without colon separators.
func ParseNodeID(s string) (NodeID, error) {
    s = strings.ReplaceAll(s, ":", "")
    raw, err := hex.DecodeString(s)
    if err != nil {
        return NodeID{}, fmt.Errorf("parse node id: %w", err)
    }
    if len(raw) != 6 {
        return NodeID{}, fmt.Errorf("parse node id: want 6 bytes, got %d", len(raw))
    }
    var id NodeID
    copy(id[:], raw)
    return id, nil
}

// ServiceType identifies a service a node can provide or request.
type ServiceType uint8

const (
    ServiceStorage          ServiceType = 0x01
    ServiceProcessing       ServiceType = 0x02
    ServiceGateway          ServiceType = 0x03
    ServiceVideoRelay       ServiceType = 0x04
    ServiceAudioRelay       ServiceType = 0x05
    ServiceDataRelay        ServiceType = 0x06
    ServiceSensorCollection ServiceType = 0x07
)

func (t ServiceType) String() string {
    switch t {
    case ServiceStorage:
        return "storage"
    case ServiceProcessing:
        return "processing"
    case ServiceGateway:
        return "gateway"
    case ServiceVideoRelay:
        return "video-relay"
    case ServiceAudioRelay:
        return "audio-relay"
    case ServiceDataRelay:
        return "data-relay"
    case ServiceSensorCollection:
        return "sensor-collection"
    default:
        return "unknown"
    }
}

// validServiceType reports whether b is a known service type tag.
func validServiceType(b byte) bool { return b >= 0x01 && b <= 0x07 }

// QosRequirements is what a service consumer demands from a provider.
type QosRequirements struct {
    MinBandwidth uint16 // kbps
    MaxLatency   uint16 // ms
    Reliability  uint8  // percent 0-100
}

// PathStatus is the result code carried in a PathConfirm.
type PathStatus uint8

const (
    PathSuccess    PathStatus = 0x00
    PathNoResource PathStatus = 0x01
    PathQosNotMet  PathStatus = 0x02
    PathTimeout    PathStatus = 0x03
    PathServerBusy PathStatus = 0x04
)
