// Package sim is an in-process bearer for tests and the simulator mode.
// A shared Channel stands in for the broadcast radio medium.
package sim

import (
    "sync"
    "time"

    "github.com/benbjohnson/clock"
    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// Channel is the shared broadcast medium between simulated nodes: a
// mutex-guarded pair of queues, one for beacons and one for data frames.
// Each enqueue/dequeue is a single critical section. Retrieval skips a
// node's own un-consumed transmissions so nodes never hear themselves.
type Channel struct {
    mu      sync.Mutex
    beacons []beaconMsg
    frames  []frameMsg
}

type beaconMsg struct {
    src    protocol.NodeID
    beacon protocol.Beacon
}

type frameMsg struct {
    src   protocol.NodeID
    frame []byte
}

// NewChannel creates an empty shared medium.
func NewChannel() *Channel { return &Channel{} }

func (c *Channel) pushBeacon(src protocol.NodeID, b protocol.Beacon) {
    c.mu.Lock()
    c.beacons = append(c.beacons, beaconMsg{src: src, beacon: b})
    c.mu.Unlock()
}

func (c *Channel) popBeacon(self protocol.NodeID) (protocol.Beacon, bool) {
    c.mu.Lock()
    defer c.mu.Unlock()
    for i := range c.beacons {
        if c.beacons[i].src == self {
            continue
        }
        b := c.beacons[i].beacon
        c.beacons = append(c.beacons[:i], c.beacons[i+1:]...)
        return b, true
    }
    return protocol.Beacon{}, false
}

func (c *Channel) pushFrame(src protocol.NodeID, frame []byte) {
    cp := append([]byte(nil), frame...)
    c.mu.Lock()
    c.frames = append(c.frames, frameMsg{src: src, frame: cp})
    c.mu.Unlock()
}

func (c *Channel) popFrame(self protocol.NodeID, buf []byte) (int, bool) {
    c.mu.Lock()
    defer c.mu.Unlock()
    for i := range c.frames {
        if c.frames[i].src == self || len(c.frames[i].frame) > len(buf) {
            continue
        }
        n := copy(buf, c.frames[i].frame)
        c.frames = append(c.frames[:i], c.frames[i+1:]...)
        return n, true
    }
    return 0, false
}

// Radio implements radio.Radio over a shared Channel.
type Radio struct {
    nodeID  protocol.NodeID
    ch      *Channel
    channel uint8
    power   uint8
    clk     clock.Clock
}

func (r *Radio) SendBeacon(b *protocol.Beacon) error {
    r.ch.pushBeacon(r.nodeID, *b)
    return nil
}

func (r *Radio) ReceiveBeacon() (protocol.Beacon, error) {
    b, ok := r.ch.popBeacon(r.nodeID)
    if !ok {
        return protocol.Beacon{}, radio.ErrNoData
    }
    return b, nil
}

func (r *Radio) SendData(p *protocol.DataPacket) error {
    frame, err := p.EncodeFrame()
    if err != nil {
        return err
    }
    r.ch.pushFrame(r.nodeID, frame)
    return nil
}

func (r *Radio) ReceiveData(buf []byte) (protocol.DataPacket, error) {
    n, ok := r.ch.popFrame(r.nodeID, buf)
    if !ok {
        return protocol.DataPacket{}, radio.ErrNoData
    }
    p, err := protocol.DecodeFrame(buf[:n])
    if err != nil {
        // Malformed frame on the medium: drop, report empty poll.
        return protocol.DataPacket{}, radio.ErrNoData
    }
    return p, nil
}

func (r *Radio) Configure(channel, power uint8) error {
    if channel < 11 || channel > 26 {
        return errConfig("channel out of range")
    }
    if power > 30 {
        return errConfig("power out of range")
    }
    r.channel = channel
    r.power = power
    return nil
}

func (r *Radio) RSSI() (int8, error) {
    // Jitter a plausible reading off the clock's low bits.
    ns := r.clk.Now().UnixNano()
    return -70 - int8(ns%20), nil
}

type errConfig string

func (e errConfig) Error() string { return "sim radio: " + string(e) }

// Hardware implements radio.Hardware for one simulated node. Time flows
// from an injected clock so tests can use clock.NewMock().
type Hardware struct {
    nodeID  protocol.NodeID
    radio   *Radio
    clk     clock.Clock
    start   time.Time
    battery uint8
}

// NewHardware attaches a node to the shared medium. Pass clock.New()
// for wall-clock time or a mock for deterministic tests.
func NewHardware(nodeID protocol.NodeID, ch *Channel, clk clock.Clock) *Hardware {
    return &Hardware{
        nodeID:  nodeID,
        radio:   &Radio{nodeID: nodeID, ch: ch, channel: 11, power: 20, clk: clk},
        clk:     clk,
        start:   clk.Now(),
        battery: 100,
    }
}

func (h *Hardware) NodeID() protocol.NodeID { return h.nodeID }
func (h *Hardware) Radio() radio.Radio      { return h.radio }

func (h *Hardware) BatteryLevel() (uint8, error) { return h.battery, nil }

func (h *Hardware) TimestampMS() (uint64, error) {
    return uint64(h.clk.Now().Sub(h.start) / time.Millisecond), nil
}

func (h *Hardware) DelayMS(ms uint32) error {
    h.clk.Sleep(time.Duration(ms) * time.Millisecond)
    if ms > 1000 {
        h.DrainBattery(1)
    }
    return nil
}

func (h *Hardware) EnterLowPowerMode() error {
    zap.L().Debug("entered low power mode", zap.String("node", h.nodeID.String()))
    return nil
}

func (h *Hardware) ExitLowPowerMode() error {
    zap.L().Debug("exited low power mode", zap.String("node", h.nodeID.String()))
    return nil
}

// DrainBattery simulates consumption; the level bottoms out at zero.
func (h *Hardware) DrainBattery(percent uint8) {
    if h.battery > percent {
        h.battery -= percent
    } else {
        h.battery = 0
    }
}
