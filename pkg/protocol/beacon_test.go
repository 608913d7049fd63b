package protocol

import (
    "bytes"
    "testing"
)

func TestBeaconRoundtrip(t *testing.T) {
    src := NodeID{0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6}
    b := NewBeacon(src, 87, -72)

    raw, err := b.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != BeaconSize { t.Fatalf("beacon size = %d", len(raw)) }

    var d Beacon
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }

    if d.Version != ProtocolVersion || d.Type != TypeBeacon ||
        !bytes.Equal(d.Source[:], src[:]) || d.BatteryLevel != 87 ||
        d.RSSI != -72 || d.HopCount != 0 || d.Checksum != b.Checksum {
        t.Fatalf("beacons differ: %#v vs %#v", d, b)
    }
    if !d.Valid() { t.Fatalf("decoded beacon did not validate") }
}

func TestBeaconChecksumDetectsBitFlips(t *testing.T) {
    b := NewBeacon(NodeID{1, 2, 3, 4, 5, 6}, 50, -60)
    raw, _ := b.MarshalBinary()

    // Flip every single bit outside the checksum field and make sure
    // validation fails each time.
    for i := 0; i < (BeaconSize-2)*8; i++ {
        mut := append([]byte(nil), raw...)
        mut[i/8] ^= 1 << (i % 8)
        var d Beacon
        if err := d.UnmarshalBinary(mut); err != nil { t.Fatalf("unmarshal: %v", err) }
        if d.Valid() {
            t.Fatalf("bit flip at %d not detected", i)
        }
    }
}

func TestBeaconShortBuffer(t *testing.T) {
    var d Beacon
    if err := d.UnmarshalBinary(make([]byte, BeaconSize-1)); err == nil {
        t.Fatalf("expected short-buffer error")
    }
}

func TestBroadcastNodeID(t *testing.T) {
    if !Broadcast.IsBroadcast() {
        t.Fatalf("Broadcast.IsBroadcast() = false")
    }
    ids := []NodeID{
        {},
        {0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE},
        {0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6},
    }
    for _, id := range ids {
        if id.IsBroadcast() {
            t.Fatalf("%x unexpectedly broadcast", id)
        }
    }
    a := NodeID{1, 2, 3, 4, 5, 6}
    b := NodeID{1, 2, 3, 4, 5, 6}
    if a != a || a != b || b != a {
        t.Fatalf("node id equality is not byte-wise")
    }
}
