// Package election implements the master selection protocol run among
// forward nodes. Priority is the first byte of the NodeID, higher wins.
// Election messages ride inside data packets; the first payload byte is
// the message type.
package election

import (
    "encoding/binary"

    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/protocol"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
)

// Election message types carried in payload byte 0.
const (
    MsgStart    = 0x01
    MsgResponse = 0x02
    MsgResult   = 0x03
)

// collectWindowMS is how long an initiator waits for responses before
// declaring a result.
const collectWindowMS = 5000

// State of the local node in the current election round.
type State uint8

const (
    StateIdle State = iota
    StateElecting
    StateCompleted
)

func (s State) String() string {
    switch s {
    case StateIdle:
        return "idle"
    case StateElecting:
        return "electing"
    case StateCompleted:
        return "completed"
    default:
        return "unknown"
    }
}

// Protocol holds the election state machine for one node.
type Protocol struct {
    nodeID     protocol.NodeID
    electionID uint16
    state      State
    master     protocol.NodeID
    hasMaster  bool
    buf        [protocol.MaxPacketSize]byte
}

func New(nodeID protocol.NodeID) *Protocol {
    return &Protocol{nodeID: nodeID, state: StateIdle}
}

// Priority of the local node.
func (p *Protocol) Priority() uint8 { return p.nodeID[0] }

// State reports the current election state.
func (p *Protocol) State() State { return p.state }

// Master returns the elected master, if any round has completed.
func (p *Protocol) Master() (protocol.NodeID, bool) { return p.master, p.hasMaster }

// Initiate starts a new election round: advances the election id,
// broadcasts a start message, waits the collection window, then declares
// a result. Re-entry from any state is allowed; the id bump makes stale
// responses ignorable.
func (p *Protocol) Initiate(hw radio.Hardware) {
    p.electionID++
    p.state = StateElecting
    zap.L().Info("initiating master election",
        zap.Uint16("election_id", p.electionID),
        zap.Uint8("priority", p.Priority()))

    var msg [4]byte
    msg[0] = MsgStart
    binary.BigEndian.PutUint16(msg[1:3], p.electionID)
    msg[3] = p.Priority()

    pkt := protocol.NewDataPacket(p.nodeID, protocol.Broadcast, p.electionID, msg[:])
    if err := hw.Radio().SendData(&pkt); err != nil {
        zap.L().Warn("election start broadcast failed", zap.Error(err))
    }

    if err := hw.DelayMS(collectWindowMS); err != nil {
        zap.L().Warn("election collection wait interrupted", zap.Error(err))
    }

    p.finish(hw)
}

// finish declares the local node master and broadcasts the result. The
// collected responses are not tallied; the initiator always wins.
func (p *Protocol) finish(hw radio.Hardware) {
    p.master = p.nodeID
    p.hasMaster = true
    p.state = StateCompleted

    var msg [10]byte
    msg[0] = MsgResult
    binary.BigEndian.PutUint16(msg[1:3], p.electionID)
    copy(msg[3:9], p.master[:])

    pkt := protocol.NewDataPacket(p.nodeID, protocol.Broadcast, p.electionID, msg[:])
    if err := hw.Radio().SendData(&pkt); err != nil {
        zap.L().Warn("election result broadcast failed", zap.Error(err))
        return
    }
    zap.L().Info("election completed", zap.String("master", p.master.String()))
}

// ProcessMessages polls the radio once and dispatches a pending election
// message, if any. Non-election traffic and malformed messages are
// dropped silently.
func (p *Protocol) ProcessMessages(hw radio.Hardware) {
    pkt, err := hw.Radio().ReceiveData(p.buf[:])
    if err != nil {
        return
    }
    p.HandlePacket(hw, &pkt)
}

// HandlePacket dispatches one already-received data packet as an
// election message. Callers that demultiplex their own traffic feed
// election payloads here.
func (p *Protocol) HandlePacket(hw radio.Hardware, pkt *protocol.DataPacket) {
    if len(pkt.Payload) == 0 {
        return
    }
    switch pkt.Payload[0] {
    case MsgStart:
        p.handleStart(hw, pkt)
    case MsgResponse:
        p.handleResponse(pkt)
    case MsgResult:
        p.handleResult(pkt)
    }
}

func (p *Protocol) handleStart(hw radio.Hardware, pkt *protocol.DataPacket) {
    if len(pkt.Payload) < 4 {
        return
    }
    electionID := binary.BigEndian.Uint16(pkt.Payload[1:3])
    senderPriority := pkt.Payload[3]
    source := pkt.Header.Source
    zap.L().Debug("election start received",
        zap.String("source", source.String()),
        zap.Uint16("election_id", electionID),
        zap.Uint8("priority", senderPriority))

    if senderPriority > p.Priority() {
        var resp [4]byte
        resp[0] = MsgResponse
        binary.BigEndian.PutUint16(resp[1:3], electionID)
        resp[3] = p.Priority()
        out := protocol.NewDataPacket(p.nodeID, source, electionID, resp[:])
        if err := hw.Radio().SendData(&out); err != nil {
            zap.L().Warn("election response send failed", zap.Error(err))
        }
        return
    }
    // Local priority is at least as high: challenge with a fresh round,
    // unless one is already underway.
    if p.state != StateElecting {
        p.Initiate(hw)
    }
}

func (p *Protocol) handleResponse(pkt *protocol.DataPacket) {
    if len(pkt.Payload) < 4 || p.state != StateElecting {
        return
    }
    electionID := binary.BigEndian.Uint16(pkt.Payload[1:3])
    if electionID != p.electionID {
        return
    }
    // Responses are acknowledged but not tallied; finish always elects
    // the initiator.
    zap.L().Debug("election response received",
        zap.String("source", pkt.Header.Source.String()))
}

func (p *Protocol) handleResult(pkt *protocol.DataPacket) {
    if len(pkt.Payload) < 9 {
        return
    }
    var master protocol.NodeID
    copy(master[:], pkt.Payload[3:9])
    p.master = master
    p.hasMaster = true
    p.state = StateCompleted
    zap.L().Info("election result adopted", zap.String("master", master.String()))
}
