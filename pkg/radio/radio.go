// Package radio defines the hardware capability consumed by the protocol
// engine. The engine is generic over these interfaces and never depends
// on a concrete bearer.
package radio

import (
    "errors"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

// ErrNoData distinguishes "nothing to receive right now" from a hard I/O
// failure. Non-blocking receive paths return it on every empty poll.
var ErrNoData = errors.New("radio: no data available")

// Radio is the send/receive surface of the wireless bearer.
type Radio interface {
    // SendBeacon broadcasts one beacon frame.
    SendBeacon(b *protocol.Beacon) error
    // ReceiveBeacon returns the next pending beacon, or ErrNoData.
    ReceiveBeacon() (protocol.Beacon, error)
    // SendData transmits one data frame toward its header destination.
    SendData(p *protocol.DataPacket) error
    // ReceiveData decodes the next pending data frame into buf, or
    // returns ErrNoData. The returned packet's payload aliases buf.
    ReceiveData(buf []byte) (protocol.DataPacket, error)
    // Configure selects an RF channel (11-26) and TX power (<=30 dBm).
    Configure(channel, power uint8) error
    // RSSI samples the current received signal strength.
    RSSI() (int8, error)
}

// Hardware bundles the node identity, radio, clock and power controls a
// node role runs on.
type Hardware interface {
    NodeID() protocol.NodeID
    Radio() Radio
    // BatteryLevel reports the remaining charge in percent.
    BatteryLevel() (uint8, error)
    // TimestampMS is the node's monotonic millisecond clock. All route
    // and directory freshness decisions are driven from this one source.
    TimestampMS() (uint64, error)
    // DelayMS sleeps cooperatively for ms milliseconds.
    DelayMS(ms uint32) error
    EnterLowPowerMode() error
    ExitLowPowerMode() error
}
