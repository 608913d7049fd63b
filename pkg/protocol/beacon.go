package protocol

import (
    "encoding/binary"
    "errors"
)

// Fixed beacon layout (16 bytes, big-endian, packed, no implicit padding).
//
//  0        Version  u8
//  1        Type     u8 = 0x01
//  2  ..7   Source   [6]byte
//  8        Battery  u8 (0-100)
//  9        RSSI     i8
//  10       HopCount u8
//  11 ..13  Reserved [3]byte
//  14 ..15  Checksum u16
const BeaconSize = 16

// Beacon is the periodic presence/advertisement packet. Instances are
// built, checksummed, transmitted and discarded per message.
type Beacon struct {
    Version      uint8
    Type         uint8
    Source       NodeID
    BatteryLevel uint8
    RSSI         int8
    HopCount     uint8
    Reserved     [3]byte
    Checksum     uint16
}

// NewBeacon builds a checksummed beacon for the local node.
func NewBeacon(source NodeID, batteryLevel uint8, rssi int8) Beacon {
    b := Beacon{
        Version:      ProtocolVersion,
        Type:         TypeBeacon,
        Source:       source,
        BatteryLevel: batteryLevel,
        RSSI:         rssi,
    }
    b.UpdateChecksum()
    return b
}

// MarshalBinary encodes the beacon to its 16-byte wire form.
func (b *Beacon) MarshalBinary() ([]byte, error) {
    buf := make([]byte, BeaconSize)
    buf[0] = b.Version
    buf[1] = b.Type
    copy(buf[2:8], b.Source[:])
    buf[8] = b.BatteryLevel
    buf[9] = byte(b.RSSI)
    buf[10] = b.HopCount
    copy(buf[11:14], b.Reserved[:])
    binary.BigEndian.PutUint16(buf[14:16], b.Checksum)
    return buf, nil
}

// UnmarshalBinary decodes a beacon from its 16-byte wire form.
func (b *Beacon) UnmarshalBinary(buf []byte) error {
    if len(buf) < BeaconSize {
        return errors.New("short beacon")
    }
    b.Version = buf[0]
    b.Type = buf[1]
    copy(b.Source[:], buf[2:8])
    b.BatteryLevel = buf[8]
    b.RSSI = int8(buf[9])
    b.HopCount = buf[10]
    copy(b.Reserved[:], buf[11:14])
    b.Checksum = binary.BigEndian.Uint16(buf[14:16])
    return nil
}

// UpdateChecksum recomputes the CRC over the whole structure with the
// checksum field zeroed, then stores it.
func (b *Beacon) UpdateChecksum() {
    b.Checksum = 0
    raw, _ := b.MarshalBinary()
    b.Checksum = Checksum(raw)
}

// Valid recomputes the CRC on a copy with a zeroed checksum field and
// compares it against the stored value.
func (b *Beacon) Valid() bool {
    cp := *b
    cp.Checksum = 0
    raw, _ := cp.MarshalBinary()
    return Checksum(raw) == b.Checksum
}
