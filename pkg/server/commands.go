package server

import (
    "errors"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// QueueSize is the fixed command queue depth. One slot stays empty to
// distinguish full from empty.
const QueueSize = 16

// ErrQueueFull is returned when a command arrives and the ring has no
// free slot.
var ErrQueueFull = errors.New("server: command queue full")

// CommandType tags a queued management command.
type CommandType uint8

const (
    CmdQuery     CommandType = 0x01
    CmdConfigure CommandType = 0x02
    CmdClear     CommandType = 0x03
    CmdReboot    CommandType = 0x04
)

func (c CommandType) String() string {
    switch c {
    case CmdQuery:
        return "query"
    case CmdConfigure:
        return "configure"
    case CmdClear:
        return "clear"
    case CmdReboot:
        return "reboot"
    default:
        return "unknown"
    }
}

// Command is one queued management request.
type Command struct {
    Source protocol.NodeID
    Type   CommandType
    Params []byte
}

// CommandQueue is a fixed ring of pending commands processed in FIFO
// order by the server loop.
type CommandQueue struct {
    nodeID   protocol.NodeID
    commands [QueueSize]*Command
    writePos int
    readPos  int
}

func NewCommandQueue(nodeID protocol.NodeID) *CommandQueue {
    return &CommandQueue{nodeID: nodeID}
}

func (q *CommandQueue) empty() bool { return q.writePos == q.readPos }

func (q *CommandQueue) full() bool { return (q.writePos+1)%QueueSize == q.readPos }

// Pending reports the number of queued commands.
func (q *CommandQueue) Pending() int {
    return (q.writePos - q.readPos + QueueSize) % QueueSize
}

// Push parses raw command data from source and enqueues it. Unknown
// command tags are dropped silently; a full ring returns ErrQueueFull.
func (q *CommandQueue) Push(source protocol.NodeID, data []byte) error {
    if len(data) == 0 {
        return nil
    }
    typ := CommandType(data[0])
    switch typ {
    case CmdQuery, CmdConfigure, CmdClear, CmdReboot:
    default:
        zap.L().Debug("unknown command dropped", zap.Uint8("tag", data[0]))
        return nil
    }
    if q.full() {
        return ErrQueueFull
    }
    cmd := &Command{Source: source, Type: typ}
    if len(data) > 1 {
        cmd.Params = append([]byte(nil), data[1:]...)
    }
    q.commands[q.writePos] = cmd
    q.writePos = (q.writePos + 1) % QueueSize
    zap.L().Debug("command queued", zap.String("type", typ.String()))
    return nil
}

// ProcessAll executes every pending command against storage, sending a
// response packet per command.
func (q *CommandQueue) ProcessAll(hw radio.Hardware, storage *CircularBuffer) {
    for !q.empty() {
        cmd := q.commands[q.readPos]
        q.commands[q.readPos] = nil
        q.readPos = (q.readPos + 1) % QueueSize
        if cmd == nil {
            continue
        }
        q.execute(hw, storage, cmd)
    }
}

func (q *CommandQueue) execute(hw radio.Hardware, storage *CircularBuffer, cmd *Command) {
    zap.L().Info("executing command",
        zap.String("type", cmd.Type.String()),
        zap.String("source", cmd.Source.String()))
    switch cmd.Type {
    case CmdQuery:
        q.respond(hw, cmd, EncodeRecords(storage.RecordsForNode(cmd.Source)))
    case CmdConfigure:
        // Collection parameters are not tunable yet; acknowledge only.
        q.respond(hw, cmd, []byte{0x01})
    case CmdClear:
        storage.ClearNode(cmd.Source)
        q.respond(hw, cmd, []byte{0x01})
    case CmdReboot:
        // A real device resets here; development builds acknowledge.
        q.respond(hw, cmd, []byte{0x01})
    }
}

func (q *CommandQueue) respond(hw radio.Hardware, cmd *Command, data []byte) {
    payload := make([]byte, 0, len(data)+1)
    payload = append(payload, byte(cmd.Type))
    payload = append(payload, data...)
    pkt := protocol.NewDataPacket(q.nodeID, cmd.Source, 0, payload)
    if err := hw.Radio().SendData(&pkt); err != nil {
        zap.L().Warn("command response send failed", zap.Error(err))
    }
}
