// Package routing keeps the fixed-capacity next-hop table a node uses to
// relay data packets. Capacity is a hard 32 entries; when the table is
// full a new destination overwrites slot 0 rather than being refused.
package routing

import (
    "errors"
    "sync"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

// TableSize is the fixed number of route slots.
const TableSize = 32

// RouteExpiryMS is how long a route stays usable without a refresh.
const RouteExpiryMS = 300_000

// ErrNoRoute is returned when no active route covers the destination.
var ErrNoRoute = errors.New("routing: no route to destination")

// Entry is one learned route. NextHop equals Destination for every
// route learned from a beacon: neighbors are always one hop away.
type Entry struct {
    Destination protocol.NodeID
    NextHop     protocol.NodeID
    Metric      int8
    LastSeenMS  uint64
}

// Engine is the routing table. Safe for concurrent use.
type Engine struct {
    selfID protocol.NodeID

    mu      sync.Mutex
    entries []Entry
}

// NewEngine returns an empty table owned by selfID. Routes toward
// selfID are silently ignored.
func NewEngine(selfID protocol.NodeID) *Engine {
    return &Engine{
        selfID:  selfID,
        entries: make([]Entry, 0, TableSize),
    }
}

// UpdateRoute inserts or refreshes the route to dest. An existing entry
// for dest is updated in place; a new destination takes a free slot, or
// overwrites slot 0 when the table is full.
func (e *Engine) UpdateRoute(dest protocol.NodeID, metric int8, nowMS uint64) {
    if dest == e.selfID {
        return
    }
    e.mu.Lock()
    defer e.mu.Unlock()
    for i := range e.entries {
        if e.entries[i].Destination == dest {
            e.entries[i].NextHop = dest
            e.entries[i].Metric = metric
            e.entries[i].LastSeenMS = nowMS
            return
        }
    }
    entry := Entry{Destination: dest, NextHop: dest, Metric: metric, LastSeenMS: nowMS}
    if len(e.entries) < TableSize {
        e.entries = append(e.entries, entry)
        return
    }
    zap.L().Debug("route table full, evicting slot 0",
        zap.String("evicted", e.entries[0].Destination.String()),
        zap.String("dest", dest.String()))
    e.entries[0] = entry
}

// NextHop resolves the neighbor to forward through for dest.
func (e *Engine) NextHop(dest protocol.NodeID) (protocol.NodeID, error) {
    e.mu.Lock()
    defer e.mu.Unlock()
    for i := range e.entries {
        if e.entries[i].Destination == dest {
            return e.entries[i].NextHop, nil
        }
    }
    return protocol.NodeID{}, ErrNoRoute
}

// RemoveRoute drops the route to dest if present.
func (e *Engine) RemoveRoute(dest protocol.NodeID) {
    e.mu.Lock()
    defer e.mu.Unlock()
    for i := range e.entries {
        if e.entries[i].Destination == dest {
            e.entries = append(e.entries[:i], e.entries[i+1:]...)
            return
        }
    }
}

// Cleanup removes every route not refreshed within RouteExpiryMS.
func (e *Engine) Cleanup(nowMS uint64) {
    e.mu.Lock()
    defer e.mu.Unlock()
    kept := e.entries[:0]
    for _, ent := range e.entries {
        if nowMS-ent.LastSeenMS <= RouteExpiryMS {
            kept = append(kept, ent)
        } else {
            zap.L().Debug("route expired", zap.String("dest", ent.Destination.String()))
        }
    }
    e.entries = kept
}

// Clear drops every route.
func (e *Engine) Clear() {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.entries = e.entries[:0]
}

// Len reports the number of active routes.
func (e *Engine) Len() int {
    e.mu.Lock()
    defer e.mu.Unlock()
    return len(e.entries)
}

// Empty reports whether the table holds no routes.
func (e *Engine) Empty() bool { return e.Len() == 0 }
