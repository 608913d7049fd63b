package client

import (
    "testing"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio/sim"
)

var (
    clientID  = protocol.NodeID{0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6}
    forwardID = protocol.NodeID{0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6}
    serverID  = protocol.NodeID{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}
)

func testConfig() config.ClientConfig {
    return config.ClientConfig{
        DiscoveryAttempts:   3,
        DiscoveryIntervalMS: 1000,
        RequestAttempts:     3,
        RequestIntervalMS:   1000,
        PathWaitMS:          30_000,
        DataIntervalMS:      500,
        PollSleepMS:         100,
    }
}

// scriptConnect queues the forward node's side of discovery and the
// service grant so Connect completes without waiting on the clock.
func scriptConnect(t *testing.T, fwdHW *sim.Hardware) {
    t.Helper()
    beacon := protocol.NewBeacon(forwardID, 100, -50)
    require.NoError(t, fwdHW.Radio().SendBeacon(&beacon))

    resp := protocol.ServiceResponse{ServiceID: 1234, ServerID: serverID, Status: 0}
    raw, err := resp.MarshalBinary()
    require.NoError(t, err)
    pkt := protocol.NewTypedPacket(protocol.TypeServiceResponse, forwardID, clientID, 0, raw)
    require.NoError(t, fwdHW.Radio().SendData(&pkt))
}

func TestConnect(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)
    fwdHW := sim.NewHardware(forwardID, ch, mock)
    scriptConnect(t, fwdHW)

    n := NewNode(clientHW, testConfig())
    require.NoError(t, n.Connect())

    ep := n.Endpoint()
    require.NotNil(t, ep)
    assert.Equal(t, uint32(1234), ep.ServiceID)
    assert.Equal(t, serverID, ep.ServerID)
    assert.Equal(t, forwardID, ep.RelayID)
    assert.Equal(t, protocol.ServiceVideoRelay, ep.Service)
    assert.False(t, n.PathEstablished())
}

func TestDiscoveryTimeout(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)

    done := make(chan struct{})
    go func() {
        for {
            select {
            case <-done:
                return
            default:
                mock.Add(2 * time.Second)
                time.Sleep(time.Millisecond)
            }
        }
    }()
    defer close(done)

    _, err := FindForward(clientHW, 3, 1000)
    assert.ErrorIs(t, err, ErrNoForward)
}

func TestServiceDenied(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)
    fwdHW := sim.NewHardware(forwardID, ch, mock)

    resp := protocol.ServiceResponse{ServiceID: 0, ServerID: protocol.Broadcast, Status: 1}
    raw, err := resp.MarshalBinary()
    require.NoError(t, err)
    pkt := protocol.NewTypedPacket(protocol.TypeServiceResponse, forwardID, clientID, 0, raw)
    require.NoError(t, fwdHW.Radio().SendData(&pkt))

    qos := protocol.QosRequirements{MinBandwidth: 500, MaxLatency: 200, Reliability: 80}
    _, err = RequestService(clientHW, forwardID, protocol.ServiceVideoRelay, qos, 60, 3, 1000)
    assert.ErrorIs(t, err, ErrServiceDenied)
}

func TestPathConfirmThenStreaming(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)
    fwdHW := sim.NewHardware(forwardID, ch, mock)
    scriptConnect(t, fwdHW)

    n := NewNode(clientHW, testConfig())
    require.NoError(t, n.Connect())

    confirm := protocol.PathConfirm{ClientID: clientID, Status: protocol.PathSuccess, HopCount: 2}
    raw, err := confirm.MarshalBinary()
    require.NoError(t, err)
    pkt := protocol.NewTypedPacket(protocol.TypePathConfirm, forwardID, clientID, 0, raw)
    require.NoError(t, fwdHW.Radio().SendData(&pkt))

    require.NoError(t, n.Tick())
    assert.True(t, n.PathEstablished())
    assert.Equal(t, uint8(2), n.Endpoint().Hops)

    // Once the path is up, a frame goes out after the data cadence.
    mock.Add(time.Second)
    require.NoError(t, n.Tick())

    var buf [protocol.MaxPacketSize]byte
    // Skip the service request still sitting on the medium.
    first, err := fwdHW.Radio().ReceiveData(buf[:])
    require.NoError(t, err)
    require.Equal(t, protocol.TypeServiceRequest, first.Header.Type)

    got, err := fwdHW.Radio().ReceiveData(buf[:])
    require.NoError(t, err)
    assert.Equal(t, serverID, got.Header.Destination)
    var frame protocol.SensorFrame
    require.NoError(t, frame.UnmarshalBinary(got.Payload))
    assert.Equal(t, uint32(1234), frame.ServiceID)
    assert.InDelta(t, 20.1, frame.Temperature, 0.01)
}

func TestFailedConfirmDoesNotEstablish(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)
    fwdHW := sim.NewHardware(forwardID, ch, mock)
    scriptConnect(t, fwdHW)

    n := NewNode(clientHW, testConfig())
    require.NoError(t, n.Connect())

    confirm := protocol.PathConfirm{ClientID: clientID, Status: protocol.PathQosNotMet, HopCount: 2}
    raw, err := confirm.MarshalBinary()
    require.NoError(t, err)
    pkt := protocol.NewTypedPacket(protocol.TypePathConfirm, forwardID, clientID, 0, raw)
    require.NoError(t, fwdHW.Radio().SendData(&pkt))

    require.NoError(t, n.Tick())
    assert.False(t, n.PathEstablished())
}

func TestPathWaitBound(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    clientHW := sim.NewHardware(clientID, ch, mock)
    fwdHW := sim.NewHardware(forwardID, ch, mock)
    scriptConnect(t, fwdHW)

    n := NewNode(clientHW, testConfig())
    require.NoError(t, n.Connect())

    mock.Add(31 * time.Second)
    assert.ErrorIs(t, n.Tick(), ErrPathTimeout)
}

func TestSyntheticReadings(t *testing.T) {
    r := ReadSensors(11)
    assert.InDelta(t, 21.1, r.Temperature, 0.01)
    assert.InDelta(t, 55.5, r.Humidity, 0.01)
    assert.InDelta(t, 101011.0, r.Pressure, 0.01)
}
