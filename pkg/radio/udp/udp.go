// Package udp is a datagram bearer implementing the radio capability, so
// the three node roles can run as separate processes on one LAN segment.
// Every frame is a single datagram sent to a shared broadcast address;
// the second frame byte discriminates beacons from data.
package udp

import (
    "net"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

const queueDepth = 32

// Radio implements radio.Radio over a UDP socket. A background read
// loop demultiplexes inbound datagrams into per-kind queues (drop when
// full); the Receive* methods stay non-blocking.
type Radio struct {
    nodeID protocol.NodeID
    conn   *net.UDPConn
    peer   *net.UDPAddr

    mu      sync.Mutex
    beacons [][]byte
    frames  [][]byte
    closed  chan struct{}

    channel uint8
    power   uint8
}

// Hardware implements radio.Hardware around a UDP radio with wall-clock
// time and a fixed battery reading (mains-powered development setup).
type Hardware struct {
    nodeID protocol.NodeID
    radio  *Radio
    start  time.Time
}

// New binds listen (e.g. ":7717") and transmits every frame to peer
// (e.g. "192.168.1.255:7717").
func New(nodeID protocol.NodeID, listen, peer string) (*Hardware, error) {
    laddr, err := net.ResolveUDPAddr("udp", listen)
    if err != nil {
        return nil, err
    }
    raddr, err := net.ResolveUDPAddr("udp", peer)
    if err != nil {
        return nil, err
    }
    conn, err := net.ListenUDP("udp", laddr)
    if err != nil {
        return nil, err
    }
    r := &Radio{
        nodeID:  nodeID,
        conn:    conn,
        peer:    raddr,
        closed:  make(chan struct{}),
        channel: 11,
        power:   20,
    }
    go r.readLoop()
    return &Hardware{nodeID: nodeID, radio: r, start: time.Now()}, nil
}

// Close stops the read loop and releases the socket.
func (h *Hardware) Close() error {
    select {
    case <-h.radio.closed:
    default:
        close(h.radio.closed)
    }
    return h.radio.conn.Close()
}

func (r *Radio) readLoop() {
    buf := make([]byte, 64*1024)
    for {
        n, _, err := r.conn.ReadFromUDP(buf)
        if err != nil {
            select {
            case <-r.closed:
                return
            default:
            }
            zap.L().Warn("udp read failed", zap.Error(err))
            return
        }
        if n < 2 {
            continue
        }
        pkt := make([]byte, n)
        copy(pkt, buf[:n])
        r.mu.Lock()
        if pkt[1] == protocol.TypeBeacon && n == protocol.BeaconSize {
            if len(r.beacons) < queueDepth {
                r.beacons = append(r.beacons, pkt)
            }
        } else if len(r.frames) < queueDepth {
            r.frames = append(r.frames, pkt)
        }
        r.mu.Unlock()
    }
}

func (r *Radio) SendBeacon(b *protocol.Beacon) error {
    raw, err := b.MarshalBinary()
    if err != nil {
        return err
    }
    _, err = r.conn.WriteToUDP(raw, r.peer)
    return err
}

func (r *Radio) ReceiveBeacon() (protocol.Beacon, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    for len(r.beacons) > 0 {
        raw := r.beacons[0]
        r.beacons = r.beacons[1:]
        var b protocol.Beacon
        if err := b.UnmarshalBinary(raw); err != nil {
            continue
        }
        if b.Source == r.nodeID {
            continue // own broadcast echoed back
        }
        return b, nil
    }
    return protocol.Beacon{}, radio.ErrNoData
}

func (r *Radio) SendData(p *protocol.DataPacket) error {
    frame, err := p.EncodeFrame()
    if err != nil {
        return err
    }
    _, err = r.conn.WriteToUDP(frame, r.peer)
    return err
}

func (r *Radio) ReceiveData(buf []byte) (protocol.DataPacket, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    for len(r.frames) > 0 {
        raw := r.frames[0]
        r.frames = r.frames[1:]
        if len(raw) > len(buf) {
            continue
        }
        n := copy(buf, raw)
        p, err := protocol.DecodeFrame(buf[:n])
        if err != nil || p.Header.Source == r.nodeID {
            continue
        }
        return p, nil
    }
    return protocol.DataPacket{}, radio.ErrNoData
}

func (r *Radio) Configure(channel, power uint8) error {
    // The datagram bearer has no RF front end; bounds are still enforced
    // so configuration mistakes surface in development.
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

func (r *Radio) RSSI() (int8, error) { return -60, nil }

type errConfig string

func (e errConfig) Error() string { return "udp radio: " + string(e) }

func (h *Hardware) NodeID() protocol.NodeID { return h.nodeID }
func (h *Hardware) Radio() radio.Radio      { return h.radio }

func (h *Hardware) BatteryLevel() (uint8, error) { return 100, nil }

func (h *Hardware) TimestampMS() (uint64, error) {
    return uint64(time.Since(h.start) / time.Millisecond), nil
}

func (h *Hardware) DelayMS(ms uint32) error {
    time.Sleep(time.Duration(ms) * time.Millisecond)
    return nil
}

func (h *Hardware) EnterLowPowerMode() error { return nil }
func (h *Hardware) ExitLowPowerMode() error  { return nil }
