// Package client implements the sensor-node role: it discovers a
// forward node, brokers a relay service through it, waits for the path
// to come up and then streams sensor frames to the assigned server.
package client

import (
    "errors"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// ErrNoForward is returned when discovery exhausts its attempts without
// hearing a neighbor beacon.
var ErrNoForward = errors.New("client: no forward node discovered")

// FindForward announces this node and listens for a neighbor beacon,
// retrying up to attempts times with intervalMS between tries. The
// first valid beacon heard names the forward node.
func FindForward(hw radio.Hardware, attempts int, intervalMS uint32) (protocol.NodeID, error) {
    zap.L().Info("searching for forward node")
    for attempt := 0; attempt < attempts; attempt++ {
        sendDiscoveryBeacon(hw)

        if beacon, err := hw.Radio().ReceiveBeacon(); err == nil && beacon.Valid() {
            zap.L().Info("forward node discovered",
                zap.String("node", beacon.Source.String()),
                zap.Int8("rssi", beacon.RSSI))
            return beacon.Source, nil
        }

        if err := hw.DelayMS(intervalMS); err != nil {
            return protocol.NodeID{}, err
        }
        zap.L().Debug("discovery retry", zap.Int("attempt", attempt+1))
    }
    return protocol.NodeID{}, ErrNoForward
}

func sendDiscoveryBeacon(hw radio.Hardware) {
    battery, err := hw.BatteryLevel()
    if err != nil {
        battery = 100
    }
    rssi, err := hw.Radio().RSSI()
    if err != nil {
        rssi = -80
    }
    beacon := protocol.NewBeacon(hw.NodeID(), battery, rssi)
    if err := hw.Radio().SendBeacon(&beacon); err != nil {
        zap.L().Warn("discovery beacon send failed", zap.Error(err))
    }
}
