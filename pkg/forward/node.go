// Package forward implements the relay-node engine: it learns routes
// from neighbor beacons, brokers service requests against the service
// directory, drives the path handshake, and relays data packets.
package forward

import (
    "context"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
    "github.com/GBCLStudio/LinkNebula/pkg/directory"
    "github.com/GBCLStudio/LinkNebula/pkg/election"
    "github.com/GBCLStudio/LinkNebula/pkg/observability"
    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
    "github.com/GBCLStudio/LinkNebula/pkg/routing"
)

// Node is a forward-role engine bound to one hardware instance.
type Node struct {
    hw       radio.Hardware
    routes   *routing.Engine
    dir      *directory.Directory
    election *election.Protocol
    metrics  *observability.Metrics
    cfg      config.ForwardConfig

    beaconAt   uint64
    electionAt uint64
    cleanupAt  uint64

    rxBuf [1024]byte
}

// NewNode wires a forward engine. A nil metrics gets a private
// registry, so handlers never nil-check.
func NewNode(hw radio.Hardware, cfg config.ForwardConfig, metrics *observability.Metrics) *Node {
    if metrics == nil {
        metrics = observability.NewMetrics(prometheus.NewRegistry())
    }
    return &Node{
        hw:       hw,
        routes:   routing.NewEngine(hw.NodeID()),
        dir:      directory.New(),
        election: election.New(hw.NodeID()),
        metrics:  metrics,
        cfg:      cfg,
    }
}

// Routes exposes the routing table, for tests and diagnostics.
func (n *Node) Routes() *routing.Engine { return n.routes }

// Directory exposes the service directory.
func (n *Node) Directory() *directory.Directory { return n.dir }

// Run drives the polling loop until ctx is done. Each iteration fires
// due timers, services at most one data packet, one beacon and one
// election message, then sleeps the poll interval.
func (n *Node) Run(ctx context.Context) error {
    zap.L().Info("forward node started", zap.String("node", n.hw.NodeID().String()))
    for {
        select {
        case <-ctx.Done():
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
    if now-n.electionAt > n.cfg.ElectionIntervalMS {
        n.election.Initiate(n.hw)
        n.metrics.ElectionsRun.Inc()
        n.electionAt = now
    }
    if now-n.cleanupAt > n.cfg.CleanupIntervalMS {
        n.dir.Cleanup(now)
        n.routes.Cleanup(now)
        n.metrics.RoutesActive.Set(float64(n.routes.Len()))
        n.metrics.ServicesActive.Set(float64(n.dir.ServiceCount()))
        n.cleanupAt = now
    }

    if pkt, err := n.hw.Radio().ReceiveData(n.rxBuf[:]); err == nil {
        switch pkt.Header.Type {
        case protocol.TypeData:
            n.handleDataPacket(&pkt)
        case protocol.TypeServiceRequest:
            n.handleServiceRequest(&pkt, now)
        case protocol.TypePathEstablish:
            n.handlePathEstablish(&pkt)
        case protocol.TypePathConfirm:
            n.handlePathConfirm(&pkt)
        default:
            n.handleOtherPacket(&pkt)
        }
    }

    if beacon, err := n.hw.Radio().ReceiveBeacon(); err == nil {
        n.handleBeacon(&beacon, now)
    }

    n.election.ProcessMessages(n.hw)
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
    n.metrics.BeaconsSent.Inc()
    zap.L().Debug("beacon sent", zap.Uint8("battery", battery))
}

// handleBeacon learns a route to the beacon source and records it as a
// potential relay provider. Every beacon is treated as a possible
// server advertisement; the beacon format carries no service list yet.
func (n *Node) handleBeacon(b *protocol.Beacon, now uint64) {
    if !b.Valid() {
        n.metrics.PacketsDropped.Inc()
        return
    }
    n.metrics.BeaconsReceived.Inc()
    n.routes.UpdateRoute(b.Source, b.RSSI, now)
    zap.L().Debug("beacon received",
        zap.String("source", b.Source.String()),
        zap.Int8("rssi", b.RSSI),
        zap.Uint8("battery", b.BatteryLevel))

    caps := directory.Capabilities{
        MaxBandwidth: 1000,
        MinLatency:   100,
        Reliability:  90,
        BatteryLevel: b.BatteryLevel,
    }
    metrics := directory.Metrics{
        SuccessRate:    100,
        AvgResponseMS:  50,
        SignalStrength: b.RSSI,
    }
    if err := n.dir.UpdateService(b.Source, protocol.ServiceVideoRelay, 0, caps, metrics, now); err != nil {
        zap.L().Debug("directory update skipped", zap.Error(err))
    }
}

// handleDataPacket relays packets addressed to another node via the
// routing table; packets with no route are dropped.
func (n *Node) handleDataPacket(pkt *protocol.DataPacket) {
    dest := pkt.Header.Destination
    if dest.IsBroadcast() || dest == n.hw.NodeID() {
        return
    }
    next, err := n.routes.NextHop(dest)
    if err != nil {
        zap.L().Debug("no route, dropping packet", zap.String("dest", dest.String()))
        n.metrics.PacketsDropped.Inc()
        return
    }
    out := protocol.NewDataPacket(n.hw.NodeID(), next, pkt.Header.PacketID, pkt.Payload)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("relay send failed", zap.Error(err))
        return
    }
    n.metrics.PacketsRelayed.Inc()
}

// handleServiceRequest brokers a service: on a directory hit it answers
// the client and opens a path toward the chosen server; on a miss it
// answers failure with the broadcast id as placeholder.
func (n *Node) handleServiceRequest(pkt *protocol.DataPacket, now uint64) {
    source := pkt.Header.Source
    var req protocol.ServiceRequest
    if err := req.UnmarshalBinary(pkt.Payload); err != nil {
        zap.L().Debug("malformed service request dropped", zap.Error(err))
        n.metrics.PacketsDropped.Inc()
        return
    }
    zap.L().Info("service request",
        zap.String("client", source.String()),
        zap.String("type", req.Service.String()))

    best := n.dir.FindBestService(req.Service, req.Qos)
    if best == nil {
        n.metrics.DirectoryMisses.Inc()
        resp := protocol.ServiceResponse{
            ServiceID: 0,
            ServerID:  protocol.Broadcast,
            Status:    1,
        }
        n.sendServiceResponse(&resp, source, pkt.Header.PacketID)
        return
    }
    n.metrics.DirectoryHits.Inc()
    resp := protocol.ServiceResponse{
        ServiceID: uint32(now),
        ServerID:  best.Node,
        Status:    0,
    }
    n.sendServiceResponse(&resp, source, pkt.Header.PacketID)
    n.establishPath(source, best.Node, req.Service, req.Qos)
}

func (n *Node) sendServiceResponse(resp *protocol.ServiceResponse, client protocol.NodeID, packetID uint16) {
    raw, err := resp.MarshalBinary()
    if err != nil {
        return
    }
    out := protocol.NewTypedPacket(protocol.TypeServiceResponse, n.hw.NodeID(), client, packetID, raw)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("service response send failed", zap.Error(err))
    }
}

// establishPath opens the second leg of the handshake toward the server.
func (n *Node) establishPath(client, server protocol.NodeID, typ protocol.ServiceType, qos protocol.QosRequirements) {
    msg := protocol.PathEstablish{ClientID: client, Service: typ, Qos: qos}
    raw, err := msg.MarshalBinary()
    if err != nil {
        return
    }
    out := protocol.NewTypedPacket(protocol.TypePathEstablish, n.hw.NodeID(), server, 0, raw)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("path establish send failed", zap.Error(err))
        return
    }
    zap.L().Info("path establish sent",
        zap.String("client", client.String()),
        zap.String("server", server.String()))
}

// handlePathEstablish relays toward the server, or answers directly when
// this node is the addressee.
func (n *Node) handlePathEstablish(pkt *protocol.DataPacket) {
    dest := pkt.Header.Destination
    if dest != n.hw.NodeID() {
        next, err := n.routes.NextHop(dest)
        if err != nil {
            n.metrics.PacketsDropped.Inc()
            return
        }
        out := protocol.NewTypedPacket(protocol.TypePathEstablish, n.hw.NodeID(), next, pkt.Header.PacketID, pkt.Payload)
        if err := n.hw.Radio().SendData(&out); err != nil {
            zap.L().Warn("path establish relay failed", zap.Error(err))
            return
        }
        n.metrics.PacketsRelayed.Inc()
        return
    }
    var est protocol.PathEstablish
    if err := est.UnmarshalBinary(pkt.Payload); err != nil {
        n.metrics.PacketsDropped.Inc()
        return
    }
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

// handlePathConfirm bumps the hop count and relays the confirmation to
// the client recorded inside the payload.
func (n *Node) handlePathConfirm(pkt *protocol.DataPacket) {
    var confirm protocol.PathConfirm
    if err := confirm.UnmarshalBinary(pkt.Payload); err != nil {
        n.metrics.PacketsDropped.Inc()
        return
    }
    confirm.HopCount++
    raw, err := confirm.MarshalBinary()
    if err != nil {
        return
    }
    out := protocol.NewTypedPacket(protocol.TypePathConfirm, n.hw.NodeID(), confirm.ClientID, pkt.Header.PacketID, raw)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("path confirm relay failed", zap.Error(err))
        return
    }
    n.metrics.PacketsRelayed.Inc()
    zap.L().Info("path confirmed",
        zap.String("client", confirm.ClientID.String()),
        zap.Uint8("hops", confirm.HopCount))
}

// handleOtherPacket forwards unclassified typed packets the same way as
// plain data.
func (n *Node) handleOtherPacket(pkt *protocol.DataPacket) {
    dest := pkt.Header.Destination
    if dest == n.hw.NodeID() || dest.IsBroadcast() {
        return
    }
    next, err := n.routes.NextHop(dest)
    if err != nil {
        n.metrics.PacketsDropped.Inc()
        return
    }
    out := protocol.NewTypedPacket(pkt.Header.Type, n.hw.NodeID(), next, pkt.Header.PacketID, pkt.Payload)
    if err := n.hw.Radio().SendData(&out); err != nil {
        zap.L().Warn("relay send failed", zap.Error(err))
        return
    }
    n.metrics.PacketsRelayed.Inc()
}
