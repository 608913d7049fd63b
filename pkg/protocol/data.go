package protocol

import (
    "encoding/binary"
    "errors"
)

// Fixed data header layout (22 bytes, big-endian, packed), followed by
// DataLength payload bytes. A full frame never exceeds MaxPacketSize.
//
//  0        Version        u8
//  1        Type           u8
//  2  ..7   Source         [6]byte
//  8  ..13  Destination    [6]byte
//  14 ..15  PacketID       u16
//  16       TotalFragments u8
//  17       FragmentIndex  u8
//  18 ..19  DataLength     u16
//  20 ..21  Checksum       u16
const DataHeaderSize = 22

// MaxPayloadSize is the most payload a single frame can carry.
const MaxPayloadSize = MaxPacketSize - DataHeaderSize

var (
    errShortFrame   = errors.New("short data frame")
    errPayloadBound = errors.New("payload exceeds frame")
)

// DataHeader describes a unicast data frame. Fragmentation fields are
// fixed at 1/0 in current use.
type DataHeader struct {
    Version        uint8
    Type           uint8
    Source         NodeID
    Destination    NodeID
    PacketID       uint16
    TotalFragments uint8
    FragmentIndex  uint8
    DataLength     uint16
    Checksum       uint16
}

// MarshalBinary encodes the header to its 22-byte wire form.
func (h *DataHeader) MarshalBinary() ([]byte, error) {
    buf := make([]byte, DataHeaderSize)
    buf[0] = h.Version
    buf[1] = h.Type
    copy(buf[2:8], h.Source[:])
    copy(buf[8:14], h.Destination[:])
    binary.BigEndian.PutUint16(buf[14:16], h.PacketID)
    buf[16] = h.TotalFragments
    buf[17] = h.FragmentIndex
    binary.BigEndian.PutUint16(buf[18:20], h.DataLength)
    binary.BigEndian.PutUint16(buf[20:22], h.Checksum)
    return buf, nil
}

// UnmarshalBinary decodes the header from its 22-byte wire form.
func (h *DataHeader) UnmarshalBinary(buf []byte) error {
    if len(buf) < DataHeaderSize {
        return errShortFrame
    }
    h.Version = buf[0]
    h.Type = buf[1]
    copy(h.Source[:], buf[2:8])
    copy(h.Destination[:], buf[8:14])
    h.PacketID = binary.BigEndian.Uint16(buf[14:16])
    h.TotalFragments = buf[16]
    h.FragmentIndex = buf[17]
    h.DataLength = binary.BigEndian.Uint16(buf[18:20])
    h.Checksum = binary.BigEndian.Uint16(buf[20:22])
    return nil
}

// DataPacket is a header plus a borrowed payload view. Payload is bound
// to the header's declared length and aliases the caller's buffer; it is
// never owned separately.
type DataPacket struct {
    Header  DataHeader
    Payload []byte
}

// NewDataPacket builds a checksummed single-fragment data packet around
// payload. The payload slice is borrowed, not copied.
func NewDataPacket(source, destination NodeID, packetID uint16, payload []byte) DataPacket {
    p := DataPacket{
        Header: DataHeader{
            Version:        ProtocolVersion,
            Type:           TypeData,
            Source:         source,
            Destination:    destination,
            PacketID:       packetID,
            TotalFragments: 1,
            FragmentIndex:  0,
            DataLength:     uint16(len(payload)),
        },
        Payload: payload,
    }
    p.UpdateChecksum()
    return p
}

// NewTypedPacket is NewDataPacket with an explicit packet type tag, used
// for the service discovery and path establishment exchanges.
func NewTypedPacket(typ uint8, source, destination NodeID, packetID uint16, payload []byte) DataPacket {
    p := NewDataPacket(source, destination, packetID, payload)
    p.Header.Type = typ
    p.UpdateChecksum()
    return p
}

// UpdateChecksum computes the CRC over the header (checksum zeroed) and
// the CRC over the payload independently, and stores their XOR. This is
// deliberately not one contiguous CRC; the two-part scheme is part of
// the wire format.
func (p *DataPacket) UpdateChecksum() {
    p.Header.Checksum = 0
    raw, _ := p.Header.MarshalBinary()
    p.Header.Checksum = Checksum(raw) ^ Checksum(p.Payload)
}

// Valid recomputes both CRCs and compares the XOR.
func (p *DataPacket) Valid() bool {
    cp := p.Header
    cp.Checksum = 0
    raw, _ := cp.MarshalBinary()
    return Checksum(raw)^Checksum(p.Payload) == p.Header.Checksum
}

// EncodeFrame returns header+payload as a single frame.
func (p *DataPacket) EncodeFrame() ([]byte, error) {
    if len(p.Payload) > MaxPayloadSize {
        return nil, errPayloadBound
    }
    p.Header.DataLength = uint16(len(p.Payload))
    hb, err := p.Header.MarshalBinary()
    if err != nil {
        return nil, err
    }
    out := make([]byte, DataHeaderSize+len(p.Payload))
    copy(out, hb)
    copy(out[DataHeaderSize:], p.Payload)
    return out, nil
}

// DecodeFrame parses a single frame from buf. The returned packet's
// payload aliases buf; callers must not retain it past the buffer's
// lifetime. All field access is bounds-checked before the payload view
// is taken.
func DecodeFrame(buf []byte) (DataPacket, error) {
    var p DataPacket
    if err := p.Header.UnmarshalBinary(buf); err != nil {
        return DataPacket{}, err
    }
    need := int(p.Header.DataLength)
    if DataHeaderSize+need > len(buf) {
        return DataPacket{}, errPayloadBound
    }
    p.Payload = buf[DataHeaderSize : DataHeaderSize+need]
    return p, nil
}
