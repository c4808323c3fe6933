package tftp

import (
	"encoding/binary"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/pkg/config"
	"github.com/samsamfire/tftpboot/pkg/image"
)

var peer = [4]byte{192, 168, 1, 50}

const peerPort uint16 = 0x1234

// Build the UDP payload of a tftp packet
func udpPayload(opcode uint16, block uint16, payload []byte) []byte {
	b := make([]byte, tftpboot.TftpHeaderSize, tftpboot.TftpHeaderSize+len(payload))
	binary.BigEndian.PutUint16(b[0:2], opcode)
	binary.BigEndian.PutUint16(b[2:4], block)
	return append(b, payload...)
}

func wrqPayload(filename string) []byte {
	b := []byte{0, byte(OpcodeWRQ)}
	b = append(b, filename...)
	b = append(b, 0)
	b = append(b, "octet"...)
	return append(b, 0)
}

func newPacket(opcode uint16, block uint16, payload []byte) Packet {
	return Packet{
		Addr:    peer,
		Port:    peerPort,
		Length:  uint16(tftpboot.TftpHeaderSize + len(payload)),
		Opcode:  opcode,
		Block:   block,
		Payload: payload,
	}
}

// Image of size bytes starting with a valid AVR vector table
func validImage(size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i * 7)
	}
	for i := 0; i < 26*4 && i+1 < size; i += 4 {
		img[i] = 0x0C
		img[i+1] = 0x94
	}
	return img
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PacketDelay = 0
	cfg.PollInterval = 0
	return cfg
}

func testEngine() *Engine {
	cfg := testConfig()
	return NewEngine(cfg.MaxAddr, cfg.PageSize, cfg.TransferPort, false, image.AVRVectorTable)
}
