package protocol

import (
    "encoding/binary"
    "errors"
)

// Service discovery wire forms. Both are fixed layouts carried as the
// payload of a typed data frame. Decode failure means "drop the packet",
// never a fatal condition.
//
// ServiceRequest (8 bytes):
//  0        ServiceType  u8
//  1  ..2   MinBandwidth u16 BE (kbps)
//  3  ..4   MaxLatency   u16 BE (ms)
//  5        Reliability  u8 (percent)
//  6  ..7   ExpiryTime   low 16 bits, BE (seconds)
//
// ServiceResponse (11 bytes):
//  0  ..3   ServiceID    u32 BE
//  4  ..9   ServerID     [6]byte
//  10       Status       u8 (0=success, 1=failure)
const (
    ServiceRequestSize  = 8
    ServiceResponseSize = 11
)

var (
    errShortService   = errors.New("short service payload")
    errBadServiceType = errors.New("unrecognized service type")
)

// ServiceRequest asks a forward node to broker a service of the given
// type under the given QoS bounds.
type ServiceRequest struct {
    Service    ServiceType
    Qos        QosRequirements
    ExpiryTime uint32 // seconds; only the low 16 bits survive the wire
}

// MarshalBinary encodes the request to its 8-byte wire form.
func (r *ServiceRequest) MarshalBinary() ([]byte, error) {
    buf := make([]byte, ServiceRequestSize)
    buf[0] = byte(r.Service)
    binary.BigEndian.PutUint16(buf[1:3], r.Qos.MinBandwidth)
    binary.BigEndian.PutUint16(buf[3:5], r.Qos.MaxLatency)
    buf[5] = r.Qos.Reliability
    binary.BigEndian.PutUint16(buf[6:8], uint16(r.ExpiryTime))
    return buf, nil
}

// UnmarshalBinary decodes the request. Short buffers and unknown service
// type tags fail decoding.
func (r *ServiceRequest) UnmarshalBinary(buf []byte) error {
    if len(buf) < ServiceRequestSize {
        return errShortService
    }
    if !validServiceType(buf[0]) {
        return errBadServiceType
    }
    r.Service = ServiceType(buf[0])
    r.Qos.MinBandwidth = binary.BigEndian.Uint16(buf[1:3])
    r.Qos.MaxLatency = binary.BigEndian.Uint16(buf[3:5])
    r.Qos.Reliability = buf[5]
    r.ExpiryTime = uint32(binary.BigEndian.Uint16(buf[6:8]))
    return nil
}

// ServiceResponse answers a ServiceRequest with the brokered server.
type ServiceResponse struct {
    ServiceID uint32
    ServerID  NodeID
    Status    uint8 // 0=success, 1=failure
}

// MarshalBinary encodes the response to its 11-byte wire form.
func (r *ServiceResponse) MarshalBinary() ([]byte, error) {
    buf := make([]byte, ServiceResponseSize)
    binary.BigEndian.PutUint32(buf[0:4], r.ServiceID)
    copy(buf[4:10], r.ServerID[:])
    buf[10] = r.Status
    return buf, nil
}

// UnmarshalBinary decodes the response from its 11-byte wire form.
func (r *ServiceResponse) UnmarshalBinary(buf []byte) error {
    if len(buf) < ServiceResponseSize {
        return errShortService
    }
    r.ServiceID = binary.BigEndian.Uint32(buf[0:4])
    copy(r.ServerID[:], buf[4:10])
    r.Status = buf[10]
    return nil
}
