// Package tftp implements a write-only, single peer TFTP server that programs
// the received image into flash.
//
// The [Engine] decides what to do with a packet without touching any
// hardware : it updates the [TransferState] and returns a [Response] plus the
// [Effects] to apply. The [Server] applies them on the transport, the flash
// and the EEPROM, in the order documented on [Effects].
//
// The peer is whoever sent the last accepted packet. Nothing authenticates it,
// any host sending an in-window block can continue or take over a transfer.
package tftp

import (
	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/pkg/image"
	log "github.com/sirupsen/logrus"
)

// Write describes a flash programming operation.
// Data is page aligned and padded with the erased flash value, Length is the
// number of bytes that came from the packet.
type Write struct {
	Addr   uint32
	Data   []byte
	Length int
}

// Effects of a packet, applied in field order.
// CommitImage must only be applied once Program succeeded.
type Effects struct {
	ResetTimer      bool   // Feed the transfer watchdog
	InvalidateImage bool   // Set the commit sentinel to bad
	OpenSocket      bool   // Re-open the socket on Port
	Port            uint16 // Data port
	Program         *Write // Pages to program
	CommitImage     bool   // Set the commit sentinel to ok
}

type Engine struct {
	MaxAddr      uint32 // End of the writable region (exclusive)
	PageSize     int
	TransferPort uint16
	RandomTID    bool
	Validator    image.Validator
}

// Create a new engine, a nil validator accepts any image
func NewEngine(maxAddr uint32, pageSize int, transferPort uint16, randomTID bool, validator image.Validator) *Engine {
	if validator == nil {
		validator = image.AcceptAll
	}
	return &Engine{
		MaxAddr:      maxAddr,
		PageSize:     pageSize,
		TransferPort: transferPort,
		RandomTID:    randomTID,
		Validator:    validator,
	}
}

// Handle a received packet
func (engine *Engine) Handle(pkt Packet, state *TransferState) (Response, Effects) {
	opcode := engine.filter(pkt, state)

	switch opcode {
	case OpcodeRRQ:
		log.Infof("[TFTP][RX] RRQ | read requests are not supported")
		return ErrorUnknown, Effects{}

	case OpcodeWRQ:
		port := engine.dataPort(pkt)
		state.reset()
		state.DataPort = port
		log.Infof("[TFTP][RX] WRQ | starting transfer on port %v", port)
		return Ack, Effects{ResetTimer: true, InvalidateImage: true, OpenSocket: true, Port: port}

	case OpcodeData:
		return engine.handleData(pkt, state)

	case OpcodeAck:
		log.Debugf("[TFTP][RX] ACK | block %v, ignored", pkt.Block)
		return ErrorUnknown, Effects{}

	case OpcodeError:
		log.Warnf("[TFTP][RX] ERROR | code %v received from peer", pkt.Block)
		return ErrorUnknown, Effects{}

	default:
		port := engine.dataPort(pkt)
		state.DataPort = port
		log.Warnf("[TFTP][RX] invalid packet (%v), restarting on port %v", pkt, port)
		return ErrorInvalidOpcode, Effects{OpenSocket: true, Port: port}
	}
}

// Demote out of sequence or oversized packets to OpcodeUnknown
func (engine *Engine) filter(pkt Packet, state *TransferState) uint16 {
	opcode := pkt.Opcode
	if opcode == OpcodeData {
		if uint32(pkt.Block) > engine.MaxAddr/tftpboot.BlockSize || !state.InWindow(pkt.Block) {
			log.Debugf("[TFTP][RX] DATA | block %v outside of window [%v,%v]", pkt.Block, state.HighBlock, uint32(state.HighBlock)+1)
			opcode = OpcodeUnknown
		} else if pkt.Length < tftpboot.TftpHeaderSize {
			opcode = OpcodeUnknown
		}
	}
	if pkt.Length > tftpboot.DataMaxSize {
		log.Debugf("[TFTP][RX] %v | oversized packet (%v bytes)", opcodeName(pkt.Opcode), pkt.Length)
		opcode = OpcodeUnknown
	}
	return opcode
}

func (engine *Engine) handleData(pkt Packet, state *TransferState) (Response, Effects) {
	effects := Effects{ResetTimer: true}
	payloadLength := int(pkt.Length) - tftpboot.TftpHeaderSize
	state.LastBlock = pkt.Block

	// Block 0 has no address, it ends up as a full error like any block
	// that would not fit
	writeAddr := (int64(pkt.Block) - 1) * tftpboot.BlockSize
	if writeAddr < 0 || writeAddr+int64(payloadLength) > int64(engine.MaxAddr) {
		log.Warnf("[TFTP][RX] DATA | block %v does not fit in flash (max x%x), image is lost", pkt.Block, engine.MaxAddr)
		return ErrorFull, effects
	}

	response := Ack
	if payloadLength < tftpboot.BlockSize {
		response = FinalAck
	}

	payload := pkt.Payload
	if len(payload) > payloadLength {
		payload = payload[:payloadLength]
	}

	if writeAddr == 0 && !engine.Validator.Valid(payload) {
		log.Warnf("[TFTP][RX] DATA | first block is not a valid image")
		return ErrorInvalidImage, effects
	}

	// Pages are programmed whole, the tail of the last page is left erased
	rounded := payloadLength
	if remainder := rounded % engine.PageSize; remainder != 0 {
		rounded += engine.PageSize - remainder
	}
	if rounded > 0 {
		data := make([]byte, rounded)
		for i := range data {
			data[i] = tftpboot.ErasedFlashValue
		}
		copy(data, payload)
		effects.Program = &Write{Addr: uint32(writeAddr), Data: data, Length: len(payload)}
	}
	effects.CommitImage = response == FinalAck
	log.Debugf("[TFTP][RX] DATA | block %v, %v bytes at x%x, %v", pkt.Block, payloadLength, writeAddr, response)
	return response, effects
}

// Port for the data phase, either derived from the client port (RFC 1350 TID)
// or the configured transfer port
func (engine *Engine) dataPort(pkt Packet) uint16 {
	if engine.RandomTID {
		port := pkt.Port&0xFF00 | uint16(^uint8(pkt.Port))
		if port != 0 {
			return port
		}
	}
	return engine.TransferPort
}
