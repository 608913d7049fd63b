package client

import (
    "encoding/binary"
    "errors"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

var (
    // ErrServiceDenied means the forward node answered but could not
    // match a provider under the requested QoS.
    ErrServiceDenied = errors.New("client: service request denied")
    // ErrNoResponse means the forward node never answered in time.
    ErrNoResponse = errors.New("client: no service response")
)

// Endpoint describes a brokered relay service the client can stream to.
type Endpoint struct {
    ServiceID uint32
    ServerID  protocol.NodeID
    RelayID   protocol.NodeID
    Service   protocol.ServiceType
    Hops      uint8
}

// RequestService asks the forward node for a service of typ under qos
// and waits for its answer, polling up to attempts times with
// intervalMS between polls.
func RequestService(hw radio.Hardware, forwardID protocol.NodeID, typ protocol.ServiceType, qos protocol.QosRequirements, expirySec uint32, attempts int, intervalMS uint32) (*Endpoint, error) {
    req := protocol.ServiceRequest{Service: typ, Qos: qos, ExpiryTime: expirySec}
    raw, err := req.MarshalBinary()
    if err != nil {
        return nil, err
    }
    pkt := protocol.NewTypedPacket(protocol.TypeServiceRequest, hw.NodeID(), forwardID, 0, raw)
    if err := hw.Radio().SendData(&pkt); err != nil {
        return nil, err
    }
    zap.L().Info("service request sent",
        zap.String("forward", forwardID.String()),
        zap.String("type", typ.String()))

    var buf [protocol.MaxPacketSize]byte
    for attempt := 0; attempt < attempts; attempt++ {
        if got, err := hw.Radio().ReceiveData(buf[:]); err == nil {
            if got.Header.Source != forwardID || got.Header.Type != protocol.TypeServiceResponse {
                continue
            }
            var resp protocol.ServiceResponse
            if err := resp.UnmarshalBinary(got.Payload); err != nil {
                continue
            }
            if resp.Status != 0 {
                zap.L().Warn("service denied", zap.Uint8("status", resp.Status))
                return nil, ErrServiceDenied
            }
            zap.L().Info("service granted",
                zap.Uint32("service_id", resp.ServiceID),
                zap.String("server", resp.ServerID.String()))
            return &Endpoint{
                ServiceID: resp.ServiceID,
                ServerID:  resp.ServerID,
                RelayID:   forwardID,
                Service:   typ,
            }, nil
        }
        if err := hw.DelayMS(intervalMS); err != nil {
            return nil, err
        }
    }
    return nil, ErrNoResponse
}

// CloseService notifies the relay that the endpoint is no longer in
// use. Reason 0 is a normal close.
func CloseService(hw radio.Hardware, endpoint *Endpoint) error {
    var msg [6]byte
    binary.BigEndian.PutUint32(msg[0:4], endpoint.ServiceID)
    msg[4] = 0 // normal close
    pkt := protocol.NewDataPacket(hw.NodeID(), endpoint.RelayID, 0, msg[:])
    if err := hw.Radio().SendData(&pkt); err != nil {
        return err
    }
    zap.L().Info("service closed", zap.Uint32("service_id", endpoint.ServiceID))
    return nil
}
