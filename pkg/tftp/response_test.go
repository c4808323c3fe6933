package tftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAck(t *testing.T) {
	state := &TransferState{LastBlock: 0x0102, HighBlock: 0x0101}
	assert.Equal(t, []byte{0, 4, 1, 2}, Build(Ack, state))
	assert.EqualValues(t, 0x0102, state.HighBlock)

	// High-water mark never decreases
	state.LastBlock = 3
	assert.Equal(t, []byte{0, 4, 0, 3}, Build(Ack, state))
	assert.EqualValues(t, 0x0102, state.HighBlock)
}

func TestBuildFinalAck(t *testing.T) {
	state := &TransferState{LastBlock: 5, HighBlock: 4}
	assert.Equal(t, []byte{0, 4, 0, 5}, Build(FinalAck, state))
	assert.EqualValues(t, 5, state.HighBlock)
}

func TestBuildErrors(t *testing.T) {
	state := &TransferState{LastBlock: 5, HighBlock: 4}
	assert.Equal(t, append([]byte{0, 5, 0, 0}, "Opcode?\x00"...), Build(ErrorInvalidOpcode, state))
	assert.Equal(t, append([]byte{0, 5, 0, 3}, "Full\x00"...), Build(ErrorFull, state))
	assert.Equal(t, append([]byte{0, 5, 0, 0}, "Error\x00"...), Build(ErrorUnknown, state))
	assert.Equal(t, append([]byte{0, 5, 0, 0}, "Invalid image file\x00"...), Build(ErrorInvalidImage, state))
	// Anything else is an unknown error
	assert.Equal(t, Build(ErrorUnknown, state), Build(Response(42), state))
	// Errors do not touch the state
	assert.Equal(t, &TransferState{LastBlock: 5, HighBlock: 4}, state)
}

func TestBuildTemplatesImmutable(t *testing.T) {
	state := &TransferState{}
	packet := Build(ErrorFull, state)
	packet[4] = 'X'
	assert.Equal(t, append([]byte{0, 5, 0, 3}, "Full\x00"...), Build(ErrorFull, state))
}

func TestResponseString(t *testing.T) {
	assert.Equal(t, "final ack", FinalAck.String())
	assert.Equal(t, "unknown response", Response(42).String())
	assert.True(t, ErrorFull.IsError())
	assert.False(t, Ack.IsError())
	assert.False(t, FinalAck.IsError())
}
