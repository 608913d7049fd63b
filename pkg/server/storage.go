// Package server implements the collection-node role: it announces
// itself with beacons, accepts relay paths, ingests sensor frames into
// a circular record buffer and answers queries and commands.
package server

import (
    "encoding/binary"
    "os"
    "path/filepath"
    "sync"

    "github.com/fxamacker/cbor/v2"
    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
)

// BufferSize is the fixed number of record slots.
const BufferSize = 1024

// recordWireSize is the per-record length of the query wire format.
const recordWireSize = 20

// SensorRecord is one stored sample.
type SensorRecord struct {
    Node        protocol.NodeID `cbor:"1,keyasint"`
    TimestampMS uint64          `cbor:"2,keyasint"`
    Temperature float32         `cbor:"3,keyasint"`
    Humidity    float32         `cbor:"4,keyasint"`
    Pressure    float32         `cbor:"5,keyasint"`
}

// CircularBuffer stores the most recent BufferSize samples; once full,
// new samples overwrite the oldest slot. Safe for concurrent use.
type CircularBuffer struct {
    mu       sync.Mutex
    records  [BufferSize]*SensorRecord
    writePos int
    count    int
}

func NewBuffer() *CircularBuffer { return &CircularBuffer{} }

// Add stores one sample stamped with nowMS.
func (b *CircularBuffer) Add(node protocol.NodeID, nowMS uint64, temperature, humidity, pressure float32) {
    b.mu.Lock()
    defer b.mu.Unlock()
    if b.records[b.writePos] == nil {
        b.count++
    }
    b.records[b.writePos] = &SensorRecord{
        Node:        node,
        TimestampMS: nowMS,
        Temperature: temperature,
        Humidity:    humidity,
        Pressure:    pressure,
    }
    b.writePos = (b.writePos + 1) % BufferSize
}

// Len reports the number of stored records.
func (b *CircularBuffer) Len() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.count
}

// RecordsForNode returns all records from node, in slot order.
func (b *CircularBuffer) RecordsForNode(node protocol.NodeID) []SensorRecord {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []SensorRecord
    for _, r := range b.records {
        if r != nil && r.Node == node {
            out = append(out, *r)
        }
    }
    return out
}

// RecordsInRange returns records with startMS <= timestamp <= endMS.
func (b *CircularBuffer) RecordsInRange(startMS, endMS uint64) []SensorRecord {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []SensorRecord
    for _, r := range b.records {
        if r != nil && r.TimestampMS >= startMS && r.TimestampMS <= endMS {
            out = append(out, *r)
        }
    }
    return out
}

// ClearNode drops every record from node.
func (b *CircularBuffer) ClearNode(node protocol.NodeID) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for i, r := range b.records {
        if r != nil && r.Node == node {
            b.records[i] = nil
            b.count--
        }
    }
}

// ClearAll drops every record and resets the write position.
func (b *CircularBuffer) ClearAll() {
    b.mu.Lock()
    defer b.mu.Unlock()
    for i := range b.records {
        b.records[i] = nil
    }
    b.count = 0
    b.writePos = 0
}

// EncodeRecords packs records into the 20-byte-per-record query wire
// format:
//  0  ..5   Node        [6]byte
//  6  ..13  TimestampMS u64 BE
//  14 ..15  Temperature u16 BE, degrees C x100
//  16 ..17  Humidity    u16 BE, percent x100
//  18 ..19  Pressure    u16 BE, hPa
func EncodeRecords(records []SensorRecord) []byte {
    out := make([]byte, 0, len(records)*recordWireSize)
    var row [recordWireSize]byte
    for _, r := range records {
        copy(row[0:6], r.Node[:])
        binary.BigEndian.PutUint64(row[6:14], r.TimestampMS)
        binary.BigEndian.PutUint16(row[14:16], uint16(r.Temperature*100))
        binary.BigEndian.PutUint16(row[16:18], uint16(r.Humidity*100))
        binary.BigEndian.PutUint16(row[18:20], uint16(r.Pressure/100))
        out = append(out, row[:]...)
    }
    return out
}

// snapshot is the CBOR export form of a buffer.
type snapshot struct {
    Records  []SensorRecord `cbor:"1,keyasint"`
    WritePos int            `cbor:"2,keyasint"`
}

// ExportSnapshot serializes the live records with the deterministic
// CBOR profile.
func (b *CircularBuffer) ExportSnapshot() ([]byte, error) {
    b.mu.Lock()
    snap := snapshot{WritePos: b.writePos}
    for _, r := range b.records {
        if r != nil {
            snap.Records = append(snap.Records, *r)
        }
    }
    b.mu.Unlock()

    opts := cbor.CanonicalEncOptions()
    mode, err := opts.EncMode()
    if err != nil {
        return nil, err
    }
    return mode.Marshal(&snap)
}

// ImportSnapshot replaces the buffer contents with a previously
// exported snapshot.
func (b *CircularBuffer) ImportSnapshot(data []byte) error {
    var snap snapshot
    if err := cbor.Unmarshal(data, &snap); err != nil {
        return err
    }
    b.mu.Lock()
    defer b.mu.Unlock()
    for i := range b.records {
        b.records[i] = nil
    }
    b.count = 0
    for i := range snap.Records {
        if i >= BufferSize {
            break
        }
        r := snap.Records[i]
        b.records[i] = &r
        b.count++
    }
    b.writePos = snap.WritePos % BufferSize
    return nil
}

// SaveSnapshot writes the snapshot to path, creating directories as
// needed.
func (b *CircularBuffer) SaveSnapshot(path string) error {
    data, err := b.ExportSnapshot()
    if err != nil {
        return err
    }
    if dir := filepath.Dir(path); dir != "." {
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return err
        }
    }
    if err := os.WriteFile(path, data, 0o644); err != nil {
        return err
    }
    zap.L().Info("record snapshot saved", zap.String("path", path), zap.Int("records", b.Len()))
    return nil
}

// LoadSnapshot restores the buffer from path. A missing file leaves the
// buffer empty without error.
func (b *CircularBuffer) LoadSnapshot(path string) error {
    data, err := os.ReadFile(path)
    if err != nil {
        if os.IsNotExist(err) {
            return nil
        }
        return err
    }
    if err := b.ImportSnapshot(data); err != nil {
        return err
    }
    zap.L().Info("record snapshot loaded", zap.String("path", path), zap.Int("records", b.Len()))
    return nil
}
