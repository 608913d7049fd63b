package election

import (
    "sync"
    "testing"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio/sim"
)

var (
    lowNode  = protocol.NodeID{0x10, 0x00, 0x00, 0x00, 0x00, 0x01}
    highNode = protocol.NodeID{0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6}
)

// runInitiate drives Initiate on a mock clock: the initiator blocks in
// the collection window until the clock is advanced past it.
func runInitiate(t *testing.T, p *Protocol, hw *sim.Hardware, mock *clock.Mock) {
    t.Helper()
    var wg sync.WaitGroup
    wg.Add(1)
    go func() {
        defer wg.Done()
        p.Initiate(hw)
    }()
    // Let the goroutine reach the clock wait before advancing.
    time.Sleep(10 * time.Millisecond)
    mock.Add(6 * time.Second)
    wg.Wait()
}

func TestInitiateElectsSelf(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    hw := sim.NewHardware(highNode, ch, mock)
    observer := sim.NewHardware(lowNode, ch, mock)

    p := New(highNode)
    runInitiate(t, p, hw, mock)

    assert.Equal(t, StateCompleted, p.State())
    master, ok := p.Master()
    require.True(t, ok)
    assert.Equal(t, highNode, master)

    // The observer sees the start broadcast and then the result.
    var buf [protocol.MaxPacketSize]byte
    start, err := observer.Radio().ReceiveData(buf[:])
    require.NoError(t, err)
    require.GreaterOrEqual(t, len(start.Payload), 4)
    assert.Equal(t, uint8(MsgStart), start.Payload[0])
    assert.Equal(t, highNode[0], start.Payload[3])

    result, err := observer.Radio().ReceiveData(buf[:])
    require.NoError(t, err)
    require.GreaterOrEqual(t, len(result.Payload), 9)
    assert.Equal(t, uint8(MsgResult), result.Payload[0])
    assert.Equal(t, highNode[:], result.Payload[3:9])
}

func TestLowerPriorityResponds(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    initiator := sim.NewHardware(highNode, ch, mock)
    follower := sim.NewHardware(lowNode, ch, mock)

    // Hand-build a start message from the higher-priority node.
    msg := []byte{MsgStart, 0x00, 0x07, highNode[0]}
    pkt := protocol.NewDataPacket(highNode, protocol.Broadcast, 7, msg)
    require.NoError(t, initiator.Radio().SendData(&pkt))

    p := New(lowNode)
    p.ProcessMessages(follower)

    // The follower must not challenge, only respond.
    assert.Equal(t, StateIdle, p.State())

    var buf [protocol.MaxPacketSize]byte
    resp, err := initiator.Radio().ReceiveData(buf[:])
    require.NoError(t, err)
    require.GreaterOrEqual(t, len(resp.Payload), 4)
    assert.Equal(t, uint8(MsgResponse), resp.Payload[0])
    assert.Equal(t, []byte{0x00, 0x07}, resp.Payload[1:3])
    assert.Equal(t, lowNode[0], resp.Payload[3])
    assert.Equal(t, highNode, resp.Header.Destination)
}

func TestHigherPriorityChallenges(t *testing.T) {
    ch := sim.NewChannel()
    mock := clock.NewMock()
    weak := sim.NewHardware(lowNode, ch, mock)
    strong := sim.NewHardware(highNode, ch, mock)

    msg := []byte{MsgStart, 0x00, 0x01, lowNode[0]}
    pkt := protocol.NewDataPacket(lowNode, protocol.Broadcast, 1, msg)
    require.NoError(t, weak.Radio().SendData(&pkt))

    p := New(highNode)
    var wg sync.WaitGroup
    wg.Add(1)
    go func() {
        defer wg.Done()
        p.ProcessMessages(strong)
    }()
    time.Sleep(10 * time.Millisecond)
    mock.Add(6 * time.Second)
    wg.Wait()

    // The challenge runs a full round; the stronger node wins it.
    assert.Equal(t, StateCompleted, p.State())
    master, ok := p.Master()
    require.True(t, ok)
    assert.Equal(t, highNode, master)
}

func TestResultAdoptedUnconditionally(t *testing.T) {
    p := New(lowNode)

    payload := make([]byte, 10)
    payload[0] = MsgResult
    payload[1], payload[2] = 0x00, 0x09
    copy(payload[3:9], highNode[:])
    pkt := protocol.NewDataPacket(highNode, protocol.Broadcast, 9, payload)

    p.HandlePacket(nil, &pkt)

    assert.Equal(t, StateCompleted, p.State())
    master, ok := p.Master()
    require.True(t, ok)
    assert.Equal(t, highNode, master)
}

func TestMalformedMessagesDropped(t *testing.T) {
    p := New(lowNode)

    short := protocol.NewDataPacket(highNode, protocol.Broadcast, 1, []byte{MsgStart, 0x00})
    p.HandlePacket(nil, &short)
    assert.Equal(t, StateIdle, p.State())

    unknown := protocol.NewDataPacket(highNode, protocol.Broadcast, 1, []byte{0x7F, 0x00, 0x01})
    p.HandlePacket(nil, &unknown)
    assert.Equal(t, StateIdle, p.State())

    _, ok := p.Master()
    assert.False(t, ok)
}

func TestStaleResponseIgnored(t *testing.T) {
    p := New(highNode)
    p.state = StateElecting
    p.electionID = 5

    stale := make([]byte, 4)
    stale[0] = MsgResponse
    stale[1], stale[2] = 0x00, 0x04
    stale[3] = lowNode[0]
    pkt := protocol.NewDataPacket(lowNode, highNode, 4, stale)

    // Mismatched id must not disturb the round in progress.
    p.HandlePacket(nil, &pkt)
    assert.Equal(t, StateElecting, p.State())
}
