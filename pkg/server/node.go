package server

import (
    "context"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// Payload tags dispatched from the first byte of a data packet.
const (
    payloadSensor  = 0x01
    payloadCommand = 0x02
    payloadQuery   = 0x03
)

// Node is a server-role engine bound to one hardware instance.
type Node struct {
    hw       radio.Hardware
    storage  *CircularBuffer
    commands *CommandQueue
    cfg      config.ServerConfig

    beaconAt uint64

    rxBuf [1024]byte
}

func NewNode(hw radio.Hardware, cfg config.ServerConfig) *Node {
    return &Node{
        hw:       hw,
        storage:  NewBuffer(),
        commands: NewCommandQueue(hw.NodeID()),
        cfg:      cfg,
    }
}

// Storage exposes the record buffer, for tests and snapshotting.
func (n *Node) Storage() *CircularBuffer { return n.storage }

// Run drives the polling loop until ctx is done. On exit the record
// buffer is snapshotted when a snapshot file is configured.
func (n *Node) Run(ctx context.Context) error {
    zap.L().Info("server node started", zap.String("node", n.hw.NodeID().String()))
    if n.cfg.SnapshotFile != "" {
        if err := n.storage.LoadSnapshot(n.cfg.SnapshotFile); err != nil {
            zap.L().Warn("snapshot restore failed", zap.Error(err))
        }
    }
    for {
        select {
        case <-ctx.Done():
            if n.cfg.SnapshotFile != "" {
                if err := n.storage.SaveSnapshot(n.cfg.SnapshotFile); err != nil {
                    zap.L().Warn("snapshot save failed", zap.Error(err))
                }
            }
            return ctx.Err()
        default:
        }
        n.Tick()
        if err := n.hw.DelayMS(n.cfg.PollSleepMS); err != nil {
            return err
        }
    }
}

// Tick runs one loop iteration without the trailing sleep.
func (n *Node) Tick() {
    now, err := n.hw.TimestampMS()
    if err != nil {
        now = 0
    }

    if now-n.beaconAt > n.cfg.BeaconIntervalMS {
        n.sendBeacon()
        n.beaconAt = now
    }

    if pkt, err := n.hw.Radio().ReceiveData(n.rxBuf[:]); err == nil {
        switch pkt.Header.Type {
        case protocol.TypePathEstablish:
            n.handlePathEstablish(&pkt)
        default:
            n.handleDataPacket(&pkt, now)
        }
    }

    n.commands.ProcessAll(n.hw, n.storage)
}

func (n *Node) sendBeacon() {
    battery, err := n.hw.BatteryLevel()
    if err != nil {
        battery = 100
    }
    rssi, err := n.hw.Radio().RSSI()
    if err != nil {
        rssi = -80
    }
    beacon := protocol.NewBeacon(n.hw.NodeID(), battery, rssi)
    if err := n.hw.Radio().SendBeacon(&beacon); err != nil {
        zap.L().Warn("beacon send failed", zap.Error(err))
        return
    }
    zap.L().Debug("server beacon sent", zap.Uint8("battery", battery))
}

// handlePathEstablish accepts a relay path terminating here and
// confirms it to the immediate sender with a single hop.
func (n *Node) handlePathEstablish(pkt *protocol.DataPacket) {
    if pkt.Header.Destination != n.hw.NodeID() {
        return
    }
    var est protocol.PathEstablish
    if err := est.UnmarshalBinary(pkt.Payload); err != nil {
        return
    }
    zap.L().Info("path establish accepted",
        zap.String("client", est.ClientID.String()),
        zap.String("type", est.Service.String()))

    confirm := protocol.PathConfirm{ClientID: est.ClientID, Status: protocol.PathSuccess, HopCount: 1}
    raw, err := confirm.MarshalBinary()
    if err != nil {
        return
    }
    out := protocol.NewTypedPacket(protocol.TypePathConfirm, n.hw.NodeID(), pkt.Header.Source, pkt.Header.PacketID, raw)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("path confirm send failed", zap.Error(err))
    }
}

// handleDataPacket dispatches on the first payload byte: sensor frames
// are stored, commands queued, queries answered immediately.
func (n *Node) handleDataPacket(pkt *protocol.DataPacket, now uint64) {
    if len(pkt.Payload) == 0 {
        return
    }
    source := pkt.Header.Source
    switch pkt.Payload[0] {
    case payloadSensor:
        var frame protocol.SensorFrame
        if err := frame.UnmarshalBinary(pkt.Payload); err != nil {
            zap.L().Debug("malformed sensor frame dropped", zap.Error(err))
            return
        }
        n.storage.Add(source, now, frame.Temperature, frame.Humidity, frame.Pressure)
        zap.L().Debug("sensor frame stored",
            zap.String("node", source.String()),
            zap.Uint32("frame", frame.FrameNo))
    case payloadCommand:
        if err := n.commands.Push(source, pkt.Payload[1:]); err != nil {
            zap.L().Warn("command dropped", zap.Error(err))
        }
    case payloadQuery:
        data := EncodeRecords(n.storage.RecordsForNode(source))
        out := protocol.NewDataPacket(n.hw.NodeID(), source, 0, data)
        if err := n.hw.Radio().SendData(&out); err != nil {
            zap.L().Warn("query response send failed", zap.Error(err))
        }
    default:
        zap.L().Debug("unrecognized payload dropped", zap.Uint8("tag", pkt.Payload[0]))
    }
}
