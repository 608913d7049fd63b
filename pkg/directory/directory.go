// Package directory tracks the services advertised by reachable servers
// and picks the best provider for a QoS request. The table has 32 fixed
// slots keyed by (node, service type).
package directory

import (
    "errors"
    "sync"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

// DirectorySize is the fixed number of service slots.
const DirectorySize = 32

// ServiceExpiryMS is how long an entry stays without an update.
const ServiceExpiryMS = 300_000

// cleanupIntervalMS throttles how often Cleanup actually sweeps.
const cleanupIntervalMS = 30_000

// ErrDirectoryFull is returned when a new (node, type) key arrives and
// every slot is taken. Updates to existing keys still succeed.
var ErrDirectoryFull = errors.New("directory: all service slots in use")

// Capabilities is what a server claims it can deliver.
type Capabilities struct {
    MaxBandwidth uint16 // kbps
    MinLatency   uint16 // ms
    Reliability  uint8  // 0-100
    BatteryLevel uint8  // 0-100
}

// Metrics is observed service performance.
type Metrics struct {
    SuccessRate    uint8
    AvgResponseMS  uint16
    SignalStrength int8 // dBm
}

// ServiceEntry is one advertised service.
type ServiceEntry struct {
    Node         protocol.NodeID
    Type         protocol.ServiceType
    Load         uint8 // 0-100
    Capabilities Capabilities
    Metrics      Metrics
    UpdatedMS    uint64
}

// Score rates how well this entry satisfies qos. Entries failing any
// hard bound (bandwidth, latency, reliability) score 0. Surplus over a
// bound earns extra points, clamped so one dimension cannot dominate.
func (s *ServiceEntry) Score(qos protocol.QosRequirements) uint16 {
    if s.Capabilities.MaxBandwidth < qos.MinBandwidth {
        return 0
    }
    if s.Capabilities.MinLatency > qos.MaxLatency {
        return 0
    }
    if s.Capabilities.Reliability < qos.Reliability {
        return 0
    }
    var score uint16
    bwSurplus := min16(s.Capabilities.MaxBandwidth-qos.MinBandwidth, 1000)
    score += 40 * (1 + bwSurplus/100)
    latSlack := min16(qos.MaxLatency-s.Capabilities.MinLatency, 500)
    score += 30 * (1 + latSlack/50)
    relSurplus := min16(uint16(s.Capabilities.Reliability-qos.Reliability), 50)
    score += 20 * (1 + relSurplus/10)
    score += 10 * (100 - uint16(s.Load)) / 10
    score += 5 * uint16(s.Capabilities.BatteryLevel) / 10
    switch {
    case s.Metrics.SignalStrength > -60:
        score += 5
    case s.Metrics.SignalStrength > -75:
        score += 3
    case s.Metrics.SignalStrength > -90:
        score += 1
    }
    return score
}

func min16(v, bound uint16) uint16 {
    if v < bound {
        return v
    }
    return bound
}

// Directory is the service table. Safe for concurrent use.
type Directory struct {
    mu            sync.Mutex
    slots         [DirectorySize]*ServiceEntry
    count         int
    lastCleanupMS uint64
}

func New() *Directory { return &Directory{} }

func (d *Directory) findIndex(node protocol.NodeID, typ protocol.ServiceType) int {
    for i, s := range d.slots {
        if s != nil && s.Node == node && s.Type == typ {
            return i
        }
    }
    return -1
}

func (d *Directory) freeSlot() int {
    for i, s := range d.slots {
        if s == nil {
            return i
        }
    }
    return -1
}

// UpdateService upserts the entry keyed (node, typ). A matching key is
// refreshed in place; otherwise a free slot is claimed, or
// ErrDirectoryFull is returned.
func (d *Directory) UpdateService(node protocol.NodeID, typ protocol.ServiceType, load uint8, caps Capabilities, metrics Metrics, nowMS uint64) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if i := d.findIndex(node, typ); i >= 0 {
        s := d.slots[i]
        s.Load = load
        s.Capabilities = caps
        s.Metrics = metrics
        s.UpdatedMS = nowMS
        return nil
    }
    i := d.freeSlot()
    if i < 0 {
        return ErrDirectoryFull
    }
    d.slots[i] = &ServiceEntry{
        Node:         node,
        Type:         typ,
        Load:         load,
        Capabilities: caps,
        Metrics:      metrics,
        UpdatedMS:    nowMS,
    }
    d.count++
    return nil
}

// FindBestService returns the highest-scoring provider of typ for qos,
// or nil when no entry has a positive score. Ties keep the first entry
// in slot order.
func (d *Directory) FindBestService(typ protocol.ServiceType, qos protocol.QosRequirements) *ServiceEntry {
    d.mu.Lock()
    defer d.mu.Unlock()
    var best *ServiceEntry
    var bestScore uint16
    for _, s := range d.slots {
        if s == nil || s.Type != typ {
            continue
        }
        if score := s.Score(qos); score > bestScore {
            bestScore = score
            best = s
        }
    }
    if best == nil {
        return nil
    }
    cp := *best
    return &cp
}

// Cleanup drops entries idle longer than ServiceExpiryMS. Sweeps run at
// most once per 30 seconds; earlier calls return immediately.
func (d *Directory) Cleanup(nowMS uint64) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if nowMS-d.lastCleanupMS < cleanupIntervalMS {
        return
    }
    for i, s := range d.slots {
        if s != nil && nowMS-s.UpdatedMS > ServiceExpiryMS {
            zap.L().Debug("service expired",
                zap.String("node", s.Node.String()),
                zap.String("type", s.Type.String()))
            d.slots[i] = nil
            d.count--
        }
    }
    d.lastCleanupMS = nowMS
}

// RegisterService records a provider with nominal default capabilities,
// for callers that do not track QoS detail.
func (d *Directory) RegisterService(node protocol.NodeID, typ protocol.ServiceType) {
    caps := Capabilities{
        MaxBandwidth: 1000,
        MinLatency:   100,
        Reliability:  90,
        BatteryLevel: 100,
    }
    metrics := Metrics{
        SuccessRate:    100,
        AvgResponseMS:  50,
        SignalStrength: -70,
    }
    if err := d.UpdateService(node, typ, 0, caps, metrics, 0); err != nil {
        zap.L().Warn("service registration dropped", zap.Error(err),
            zap.String("node", node.String()))
    }
}

// FindService returns any provider of typ, ignoring QoS.
func (d *Directory) FindService(typ protocol.ServiceType) (protocol.NodeID, bool) {
    d.mu.Lock()
    defer d.mu.Unlock()
    for _, s := range d.slots {
        if s != nil && s.Type == typ {
            return s.Node, true
        }
    }
    return protocol.NodeID{}, false
}

// RemoveService drops the entry keyed (node, typ) if present.
func (d *Directory) RemoveService(node protocol.NodeID, typ protocol.ServiceType) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if i := d.findIndex(node, typ); i >= 0 {
        d.slots[i] = nil
        d.count--
    }
}

// ServiceCount reports the number of registered services.
func (d *Directory) ServiceCount() int {
    d.mu.Lock()
    defer d.mu.Unlock()
    return d.count
}
