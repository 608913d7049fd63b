package client

// SensorReading is one sample of the attached environment sensors.
type SensorReading struct {
    Temperature float32 // degrees C
    Humidity    float32 // percent
    Pressure    float32 // Pa
}

// ReadSensors synthesizes a plausible reading from the current time.
// Real hardware replaces this with an I2C driver.
func ReadSensors(nowSec uint64) SensorReading {
    return SensorReading{
        Temperature: 20.0 + float32(nowSec%100)/10.0,
        Humidity:    50.0 + float32(nowSec%60)/2.0,
        Pressure:    101000.0 + float32(nowSec%1000),
    }
}
