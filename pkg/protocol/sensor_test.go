package protocol

import "testing"

func TestSensorFrameRoundtrip(t *testing.T) {
    f := SensorFrame{
        ServiceID:   0x0000BEEF,
        FrameNo:     42,
        Temperature: 21.5,
        Humidity:    55.25,
        Pressure:    101325,
    }
    raw, err := f.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(raw) != SensorFrameSize { t.Fatalf("wire size = %d", len(raw)) }
    if raw[0] != PayloadSensorFrame { t.Fatalf("kind byte = %#x", raw[0]) }

    var d SensorFrame
    if err := d.UnmarshalBinary(raw); err != nil { t.Fatalf("unmarshal: %v", err) }
    if d != f { t.Fatalf("roundtrip mismatch: %#v vs %#v", d, f) }
}

func TestSensorFrameDecodeRejects(t *testing.T) {
    f := SensorFrame{ServiceID: 1, FrameNo: 1}
    raw, _ := f.MarshalBinary()

    var d SensorFrame
    if err := d.UnmarshalBinary(raw[:SensorFrameSize-1]); err == nil {
        t.Fatalf("expected error for short buffer")
    }

    raw[0] = 0x02 // not a sensor frame
    if err := d.UnmarshalBinary(raw); err == nil {
        t.Fatalf("expected error for wrong kind tag")
    }
}
