package protocol

import "testing"

func TestServiceRequestRoundtrip(t *testing.T) {
    req := ServiceRequest{
        Service: ServiceVideoRelay,
        Qos: QosRequirements{
            MinBandwidth: 500,
            MaxLatency:   100,
            Reliability:  80,
        },
        ExpiryTime: 60,
    }
    raw, err := req.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != ServiceRequestSize { t.Fatalf("wire size = %d", len(raw)) }

    var d ServiceRequest
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != req { t.Fatalf("roundtrip mismatch: %#v vs %#v", d, req) }
}

func TestServiceRequestDecodeRejects(t *testing.T) {
    req := ServiceRequest{Service: ServiceStorage, Qos: QosRequirements{Reliability: 90}}
    raw, _ := req.MarshalBinary()

    var d ServiceRequest
    if err := d.UnmarshalBinary(raw[:ServiceRequestSize-1]); err == nil {
        t.Fatalf("expected error for short buffer")
    }

    raw[0] = 0x7F // not a service type
    if err := d.UnmarshalBinary(raw); err == nil {
        t.Fatalf("expected error for unknown service type")
    }
}

func TestServiceResponseRoundtrip(t *testing.T) {
    resp := ServiceResponse{
        ServiceID: 0xDEADBEEF,
        ServerID:  NodeID{0x51, 0x52, 0x53, 0x54, 0x55, 0x56},
        Status:    0,
    }
    raw, err := resp.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != ServiceResponseSize { t.Fatalf("wire size = %d", len(raw)) }

    var d ServiceResponse
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != resp { t.Fatalf("roundtrip mismatch: %#v vs %#v", d, resp) }

    if err := d.UnmarshalBinary(raw[:ServiceResponseSize-1]); err == nil {
        t.Fatalf("expected error for short buffer")
    }
}

func TestPathEstablishRoundtrip(t *testing.T) {
    m := PathEstablish{
        ClientID: NodeID{0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6},
        Service:  ServiceVideoRelay,
        Qos:      QosRequirements{MinBandwidth: 500, MaxLatency: 100, Reliability: 80},
    }
    raw, err := m.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != PathEstablishSize { t.Fatalf("wire size = %d", len(raw)) }

    var d PathEstablish
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != m { t.Fatalf("roundtrip mismatch") }

    if err := d.UnmarshalBinary(raw[:PathEstablishSize-1]); err == nil {
        t.Fatalf("expected error for short buffer")
    }
}

func TestPathConfirmRoundtrip(t *testing.T) {
    m := PathConfirm{
        ClientID: NodeID{0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6},
        Status:   PathSuccess,
        HopCount: 1,
    }
    raw, err := m.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != PathConfirmSize { t.Fatalf("wire size = %d", len(raw)) }

    var d PathConfirm
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != m { t.Fatalf("roundtrip mismatch") }
}
