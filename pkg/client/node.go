package client

import (
    "context"
    "errors"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// ErrPathTimeout means the relay path never came up within the bound.
var ErrPathTimeout = errors.New("client: path establishment timed out")

// Node is a client-role engine bound to one hardware instance.
type Node struct {
    hw  radio.Hardware
    cfg config.ClientConfig

    endpoint        *Endpoint
    pathEstablished bool
    lastDataMS      uint64
    pathStartMS     uint64

    rxBuf [1024]byte
}

func NewNode(hw radio.Hardware, cfg config.ClientConfig) *Node {
    return &Node{hw: hw, cfg: cfg}
}

// Endpoint returns the brokered endpoint once Connect has succeeded.
func (n *Node) Endpoint() *Endpoint { return n.endpoint }

// PathEstablished reports whether a PathConfirm with success has been
// received.
func (n *Node) PathEstablished() bool { return n.pathEstablished }

// Connect performs discovery and the service request, leaving the node
// ready to run its streaming loop.
func (n *Node) Connect() error {
    forwardID, err := FindForward(n.hw, n.cfg.DiscoveryAttempts, n.cfg.DiscoveryIntervalMS)
    if err != nil {
        return err
    }
    qos := protocol.QosRequirements{MinBandwidth: 500, MaxLatency: 200, Reliability: 80}
    endpoint, err := RequestService(n.hw, forwardID, protocol.ServiceVideoRelay, qos, 60,
        n.cfg.RequestAttempts, n.cfg.RequestIntervalMS)
    if err != nil {
        return err
    }
    n.endpoint = endpoint
    if now, err := n.hw.TimestampMS(); err == nil {
        n.pathStartMS = now
    }
    return nil
}

// Run drives the streaming loop until ctx is done or the path bound
// expires before establishment. Connect must have succeeded first.
func (n *Node) Run(ctx context.Context) error {
    zap.L().Info("client streaming loop started", zap.String("node", n.hw.NodeID().String()))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        default:
        }
        if err := n.Tick(); err != nil {
            return err
        }
        if err := n.hw.DelayMS(n.cfg.PollSleepMS); err != nil {
            return err
        }
    }
}

// Tick runs one loop iteration: absorb one pending packet, then either
// emit a sensor frame on cadence or check the path-wait bound.
func (n *Node) Tick() error {
    now, err := n.hw.TimestampMS()
    if err != nil {
        now = 0
    }

    if pkt, err := n.hw.Radio().ReceiveData(n.rxBuf[:]); err == nil {
        n.handlePacket(&pkt)
    }

    if n.pathEstablished && n.endpoint != nil {
        if now-n.lastDataMS > n.cfg.DataIntervalMS {
            n.sendSensorFrame(now)
            n.lastDataMS = now
        }
        return nil
    }
    if now-n.pathStartMS > n.cfg.PathWaitMS {
        zap.L().Warn("relay path never established")
        return ErrPathTimeout
    }
    return nil
}

func (n *Node) handlePacket(pkt *protocol.DataPacket) {
    if pkt.Header.Type != protocol.TypePathConfirm {
        zap.L().Debug("unexpected packet", zap.Uint8("type", pkt.Header.Type))
        return
    }
    var confirm protocol.PathConfirm
    if err := confirm.UnmarshalBinary(pkt.Payload); err != nil {
        return
    }
    if confirm.Status != protocol.PathSuccess {
        zap.L().Warn("relay path failed", zap.Uint8("status", uint8(confirm.Status)))
        return
    }
    n.pathEstablished = true
    if n.endpoint != nil {
        n.endpoint.Hops = confirm.HopCount
    }
    zap.L().Info("relay path established", zap.Uint8("hops", confirm.HopCount))
}

func (n *Node) sendSensorFrame(nowMS uint64) {
    reading := ReadSensors(nowMS / 1000)
    frameNo := uint32(nowMS % 10_000)
    frame := protocol.SensorFrame{
        ServiceID:   n.endpoint.ServiceID,
        FrameNo:     frameNo,
        Temperature: reading.Temperature,
        Humidity:    reading.Humidity,
        Pressure:    reading.Pressure,
    }
    payload, err := frame.MarshalBinary()
    if err != nil {
        return
    }
    pkt := protocol.NewDataPacket(n.hw.NodeID(), n.endpoint.ServerID, uint16(frameNo), payload)
    if err := n.hw.Radio().SendData(&pkt); err != nil {
        zap.L().Warn("sensor frame send failed", zap.Error(err))
        return
    }
    zap.L().Debug("sensor frame sent", zap.Uint32("frame", frameNo))
}
