package protocol

import (
    "bytes"
    "testing"
)

func TestDataFrameEncodeDecode(t *testing.T) {
    src := NodeID{0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6}
    dst := NodeID{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}
    payload := []byte("sensor frame")
    p := NewDataPacket(src, dst, 42, payload)

    frame, err := p.EncodeFrame()
    if err != nil { t.Fatalf("encode: %v", err) }

    d, err := DecodeFrame(frame)
    if err != nil { t.Fatalf("decode: %v", err) }

    if d.Header.Source != src || d.Header.Destination != dst || d.Header.PacketID != 42 {
        t.Fatalf("header mismatch: %#v", d.Header)
    }
    if d.Header.TotalFragments != 1 || d.Header.FragmentIndex != 0 {
        t.Fatalf("fragment fields = %d/%d", d.Header.TotalFragments, d.Header.FragmentIndex)
    }
    if !bytes.Equal(d.Payload, payload) { t.Fatalf("payload mismatch") }
    if !d.Valid() { t.Fatalf("decoded packet did not validate") }
}

func TestDataPayloadView(t *testing.T) {
    p := NewDataPacket(NodeID{1}, NodeID{2}, 1, []byte{0xAA, 0xBB})
    frame, _ := p.EncodeFrame()
    d, err := DecodeFrame(frame)
    if err != nil { t.Fatalf("decode: %v", err) }
    // The payload must alias the frame buffer, not copy it.
    if &d.Payload[0] != &frame[DataHeaderSize] {
        t.Fatalf("payload is not a view into the frame buffer")
    }
}

func TestDataChecksumDetectsBitFlips(t *testing.T) {
    p := NewDataPacket(NodeID{1, 2, 3, 4, 5, 6}, NodeID{9, 8, 7, 6, 5, 4}, 7, []byte{0xDE, 0xAD, 0xBE, 0xEF})
    frame, _ := p.EncodeFrame()

    for i := 0; i < len(frame)*8; i++ {
        if i >= 20*8 && i < 22*8 {
            continue // checksum field itself
        }
        mut := append([]byte(nil), frame...)
        mut[i/8] ^= 1 << (i % 8)
        d, err := DecodeFrame(mut)
        if err != nil {
            continue // a corrupted length field can shrink past the buffer
        }
        if d.Valid() {
            t.Fatalf("bit flip at %d not detected", i)
        }
    }
}

func TestDataChecksumIsTwoPartXor(t *testing.T) {
    p := NewDataPacket(NodeID{1}, NodeID{2}, 3, []byte{1, 2, 3})
    hdr := p.Header
    hdr.Checksum = 0
    raw, _ := hdr.MarshalBinary()
    want := Checksum(raw) ^ Checksum(p.Payload)
    if p.Header.Checksum != want {
        t.Fatalf("checksum = %#04x, want header-xor-payload %#04x", p.Header.Checksum, want)
    }
}

func TestDecodeFrameTruncated(t *testing.T) {
    p := NewDataPacket(NodeID{1}, NodeID{2}, 3, []byte{1, 2, 3, 4})
    frame, _ := p.EncodeFrame()

    if _, err := DecodeFrame(frame[:DataHeaderSize-1]); err == nil {
        t.Fatalf("expected error for truncated header")
    }
    if _, err := DecodeFrame(frame[:len(frame)-2]); err == nil {
        t.Fatalf("expected error for truncated payload")
    }
}
