package routing

import (
    "testing"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

var (
    self  = protocol.NodeID{0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6}
    nodeA = protocol.NodeID{0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6}
    nodeB = protocol.NodeID{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}
)

func TestUpdateAndResolve(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(nodeA, -60, 1000)

    hop, err := e.NextHop(nodeA)
    if err != nil {
        t.Fatalf("NextHop: %v", err)
    }
    if hop != nodeA {
        t.Fatalf("next hop = %v, want destination %v", hop, nodeA)
    }
}

func TestSelfRouteIgnored(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(self, -10, 1000)
    if !e.Empty() {
        t.Fatal("route to self must not be stored")
    }
}

func TestUpdateExistingKeepsLength(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(nodeA, -60, 1000)
    e.UpdateRoute(nodeA, -40, 2000)
    if e.Len() != 1 {
        t.Fatalf("len = %d, want 1", e.Len())
    }
}

func TestUnknownDestination(t *testing.T) {
    e := NewEngine(self)
    if _, err := e.NextHop(nodeB); err != ErrNoRoute {
        t.Fatalf("err = %v, want ErrNoRoute", err)
    }
}

func TestFullTableOverwritesSlotZero(t *testing.T) {
    e := NewEngine(self)
    for i := 0; i < TableSize; i++ {
        dest := protocol.NodeID{0x10, 0x00, 0x00, 0x00, 0x00, byte(i)}
        e.UpdateRoute(dest, -50, 1000)
    }
    if e.Len() != TableSize {
        t.Fatalf("len = %d, want %d", e.Len(), TableSize)
    }

    first := protocol.NodeID{0x10, 0x00, 0x00, 0x00, 0x00, 0x00}
    e.UpdateRoute(nodeA, -50, 2000)
    if e.Len() != TableSize {
        t.Fatalf("len after overwrite = %d, want %d", e.Len(), TableSize)
    }
    if _, err := e.NextHop(first); err != ErrNoRoute {
        t.Fatal("slot 0 occupant should have been evicted")
    }
    if _, err := e.NextHop(nodeA); err != nil {
        t.Fatalf("new destination missing after eviction: %v", err)
    }
}

func TestRemoveRoute(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(nodeA, -60, 1000)
    e.UpdateRoute(nodeB, -70, 1000)
    e.RemoveRoute(nodeA)
    if e.Len() != 1 {
        t.Fatalf("len = %d, want 1", e.Len())
    }
    if _, err := e.NextHop(nodeB); err != nil {
        t.Fatalf("surviving route lost: %v", err)
    }
}

func TestCleanupExpiresStaleOnly(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(nodeA, -60, 0)
    e.UpdateRoute(nodeB, -60, 200_000)

    e.Cleanup(300_000)
    if e.Len() != 2 {
        t.Fatalf("len after boundary cleanup = %d, want 2 (expiry is exclusive)", e.Len())
    }

    e.Cleanup(300_001)
    if e.Len() != 1 {
        t.Fatalf("len = %d, want 1", e.Len())
    }
    if _, err := e.NextHop(nodeA); err != ErrNoRoute {
        t.Fatal("stale route survived cleanup")
    }
    if _, err := e.NextHop(nodeB); err != nil {
        t.Fatalf("fresh route expired: %v", err)
    }
}

func TestClear(t *testing.T) {
    e := NewEngine(self)
    e.UpdateRoute(nodeA, -60, 1000)
    e.UpdateRoute(nodeB, -60, 1000)
    e.Clear()
    if !e.Empty() {
        t.Fatal("table not empty after Clear")
    }
}
