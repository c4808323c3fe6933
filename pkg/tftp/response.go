package tftp

import (
	"encoding/binary"
)

// Response of the engine to one packet
type Response uint8

const (
	ErrorUnknown Response = iota
	ErrorInvalidOpcode
	ErrorFull
	ErrorInvalidImage
	Ack
	FinalAck
)

// TFTP error codes used in error packets
const (
	errorCodeUndefined uint16 = 0
	errorCodeDiskFull  uint16 = 3
)

var ResponseDescriptionMap = map[Response]string{
	ErrorUnknown:       "unknown error",
	ErrorInvalidOpcode: "invalid opcode",
	ErrorFull:          "flash full",
	ErrorInvalidImage:  "invalid image",
	Ack:                "ack",
	FinalAck:           "final ack",
}

func (response Response) String() string {
	description, ok := ResponseDescriptionMap[response]
	if ok {
		return description
	}
	return "unknown response"
}

func (response Response) IsError() bool {
	return response != Ack && response != FinalAck
}

func errorPacket(code uint16, message string) []byte {
	packet := make([]byte, 4, 4+len(message)+1)
	binary.BigEndian.PutUint16(packet[0:2], OpcodeError)
	binary.BigEndian.PutUint16(packet[2:4], code)
	packet = append(packet, message...)
	return append(packet, 0)
}

// Canned error packets, never modified
var errorTemplates = map[Response][]byte{
	ErrorUnknown:       errorPacket(errorCodeUndefined, "Error"),
	ErrorInvalidOpcode: errorPacket(errorCodeUndefined, "Opcode?"),
	ErrorFull:          errorPacket(errorCodeDiskFull, "Full"),
	ErrorInvalidImage:  errorPacket(errorCodeUndefined, "Invalid image file"),
}

// Build serializes a response.
// Acknowledgments carry state.LastBlock and raise the high-water mark
// state.HighBlock to it. Unknown responses are sent as [ErrorUnknown].
func Build(response Response, state *TransferState) []byte {
	switch response {
	case Ack, FinalAck:
		if state.LastBlock > state.HighBlock {
			state.HighBlock = state.LastBlock
		}
		packet := make([]byte, 4)
		binary.BigEndian.PutUint16(packet[0:2], OpcodeAck)
		binary.BigEndian.PutUint16(packet[2:4], state.LastBlock)
		return packet
	}
	template, ok := errorTemplates[response]
	if !ok {
		template = errorTemplates[ErrorUnknown]
	}
	packet := make([]byte, len(template))
	copy(packet, template)
	return packet
}
