package tftp

import (
	"encoding/binary"
	"fmt"

	"github.com/samsamfire/tftpboot"
)

// TFTP opcodes, OpcodeUnknown is never sent on the wire and is used for
// packets rejected before dispatch
const (
	OpcodeUnknown uint16 = 0
	OpcodeRRQ     uint16 = 1
	OpcodeWRQ     uint16 = 2
	OpcodeData    uint16 = 3
	OpcodeAck     uint16 = 4
	OpcodeError   uint16 = 5
)

var opcodeNames = map[uint16]string{
	OpcodeUnknown: "UNKNOWN",
	OpcodeRRQ:     "RRQ",
	OpcodeWRQ:     "WRQ",
	OpcodeData:    "DATA",
	OpcodeAck:     "ACK",
	OpcodeError:   "ERROR",
}

func opcodeName(opcode uint16) string {
	name, ok := opcodeNames[opcode]
	if ok {
		return name
	}
	return fmt.Sprintf("x%x", opcode)
}

// A received datagram, as stored by the socket chip.
// Length is the UDP payload length declared in the chip header, it may be
// larger than what was actually buffered.
type Packet struct {
	Addr    [4]byte
	Port    uint16
	Length  uint16
	Opcode  uint16
	Block   uint16
	Payload []byte
}

// ParsePacket decodes the chip header and the TFTP header of raw.
// Missing TFTP fields read as zero, Payload aliases raw.
func ParsePacket(raw []byte) (Packet, error) {
	var pkt Packet
	if len(raw) < tftpboot.UdpHeaderSize {
		return pkt, tftpboot.ErrPacketTooShort
	}
	copy(pkt.Addr[:], raw[0:4])
	pkt.Port = binary.BigEndian.Uint16(raw[4:6])
	pkt.Length = binary.BigEndian.Uint16(raw[6:8])

	udp := raw[tftpboot.UdpHeaderSize:]
	if len(udp) > int(pkt.Length) {
		udp = udp[:pkt.Length]
	}
	if len(udp) >= tftpboot.OpcodeSize {
		pkt.Opcode = binary.BigEndian.Uint16(udp[0:2])
	}
	if len(udp) >= tftpboot.TftpHeaderSize {
		pkt.Block = binary.BigEndian.Uint16(udp[2:4])
		pkt.Payload = udp[tftpboot.TftpHeaderSize:]
	}
	return pkt, nil
}

func (pkt Packet) String() string {
	return fmt.Sprintf("%v from %d.%d.%d.%d:%d | block %v | len %v",
		opcodeName(pkt.Opcode),
		pkt.Addr[0], pkt.Addr[1], pkt.Addr[2], pkt.Addr[3],
		pkt.Port,
		pkt.Block,
		pkt.Length,
	)
}
