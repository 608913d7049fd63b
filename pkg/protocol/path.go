package protocol

import (
    "encoding/binary"
    "errors"
)

// Path establishment messages use ad-hoc fixed byte layouts rather than
// the shared service codec; the offsets below are part of the wire
// format and must not move.
//
// PathEstablish payload (12 bytes, decoders accept longer):
//  0  ..5   ClientID     [6]byte
//  6        ServiceType  u8
//  7  ..8   MinBandwidth u16 BE
//  9  ..10  MaxLatency   u16 BE
//  11       Reliability  u8
//
// PathConfirm payload (8 bytes):
//  0  ..5   ClientID [6]byte
//  6        Status   u8
//  7        HopCount u8
const (
    PathEstablishSize = 12
    PathConfirmSize   = 8
)

var errShortPath = errors.New("short path payload")

// PathEstablish opens a relay path from a client toward a chosen server.
type PathEstablish struct {
    ClientID NodeID
    Service  ServiceType
    Qos      QosRequirements
}

// MarshalBinary encodes the message to its 12-byte wire form.
func (m *PathEstablish) MarshalBinary() ([]byte, error) {
    buf := make([]byte, PathEstablishSize)
    copy(buf[0:6], m.ClientID[:])
    buf[6] = byte(m.Service)
    binary.BigEndian.PutUint16(buf[7:9], m.Qos.MinBandwidth)
    binary.BigEndian.PutUint16(buf[9:11], m.Qos.MaxLatency)
    buf[11] = m.Qos.Reliability
    return buf, nil
}

// UnmarshalBinary decodes the message; buffers shorter than 12 bytes
// fail decoding.
func (m *PathEstablish) UnmarshalBinary(buf []byte) error {
    if len(buf) < PathEstablishSize {
        return errShortPath
    }
    copy(m.ClientID[:], buf[0:6])
    m.Service = ServiceType(buf[6])
    m.Qos.MinBandwidth = binary.BigEndian.Uint16(buf[7:9])
    m.Qos.MaxLatency = binary.BigEndian.Uint16(buf[9:11])
    m.Qos.Reliability = buf[11]
    return nil
}

// PathConfirm reports the outcome of a PathEstablish back toward the
// client, accumulating hop count at each relay.
type PathConfirm struct {
    ClientID NodeID
    Status   PathStatus
    HopCount uint8
}

// MarshalBinary encodes the message to its 8-byte wire form.
func (m *PathConfirm) MarshalBinary() ([]byte, error) {
    buf := make([]byte, PathConfirmSize)
    copy(buf[0:6], m.ClientID[:])
    buf[6] = byte(m.Status)
    buf[7] = m.HopCount
    return buf, nil
}

// UnmarshalBinary decodes the message; buffers shorter than 8 bytes
// fail decoding.
func (m *PathConfirm) UnmarshalBinary(buf []byte) error {
    if len(buf) < PathConfirmSize {
        return errShortPath
    }
    copy(m.ClientID[:], buf[0:6])
    m.Status = PathStatus(buf[6])
    m.HopCount = buf[7]
    return nil
}
