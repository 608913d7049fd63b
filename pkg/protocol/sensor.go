package protocol

import (
    "encoding/binary"
    "errors"
    "math"
)

// Sensor frame payload (21 bytes), streamed from clients to the
// assigned server inside plain data packets:
//  0        kind      u8, 0x01 = sensor frame
//  1  ..4   ServiceID u32 BE
//  5  ..8   FrameNo   u32 BE
//  9  ..12  Temp      f32 BE (degrees C)
//  13 ..16  Humidity  f32 BE (percent)
//  17 ..20  Pressure  f32 BE (Pa)
const SensorFrameSize = 21

// PayloadSensorFrame tags the first payload byte of a sensor frame.
const PayloadSensorFrame = 0x01

var errShortSensor = errors.New("short sensor frame")

// SensorFrame is one sample streamed over an established relay path.
type SensorFrame struct {
    ServiceID   uint32
    FrameNo     uint32
    Temperature float32
    Humidity    float32
    Pressure    float32
}

// MarshalBinary encodes the frame to its 21-byte wire form.
func (f *SensorFrame) MarshalBinary() ([]byte, error) {
    buf := make([]byte, SensorFrameSize)
    buf[0] = PayloadSensorFrame
    binary.BigEndian.PutUint32(buf[1:5], f.ServiceID)
    binary.BigEndian.PutUint32(buf[5:9], f.FrameNo)
    binary.BigEndian.PutUint32(buf[9:13], math.Float32bits(f.Temperature))
    binary.BigEndian.PutUint32(buf[13:17], math.Float32bits(f.Humidity))
    binary.BigEndian.PutUint32(buf[17:21], math.Float32bits(f.Pressure))
    return buf, nil
}

// UnmarshalBinary decodes the frame; short buffers or a wrong kind tag
// fail decoding.
func (f *SensorFrame) UnmarshalBinary(buf []byte) error {
    if len(buf) < SensorFrameSize || buf[0] != PayloadSensorFrame {
        return errShortSensor
    }
    f.ServiceID = binary.BigEndian.Uint32(buf[1:5])
    f.FrameNo = binary.BigEndian.Uint32(buf[5:9])
    f.Temperature = math.Float32frombits(binary.BigEndian.Uint32(buf[9:13]))
    f.Humidity = math.Float32frombits(binary.BigEndian.Uint32(buf[13:17]))
    f.Pressure = math.Float32frombits(binary.BigEndian.Uint32(buf[17:21]))
    return nil
}
