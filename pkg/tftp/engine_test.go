package tftp

import (
	"bytes"
	"testing"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/pkg/image"
	"github.com/stretchr/testify/assert"
)

func TestWriteRequest(t *testing.T) {
	engine := testEngine()
	state := &TransferState{LastBlock: 7, HighBlock: 7}
	response, effects := engine.Handle(newPacket(OpcodeWRQ, 0, nil), state)
	assert.Equal(t, Ack, response)
	assert.EqualValues(t, 0, state.LastBlock)
	assert.EqualValues(t, 0, state.HighBlock)
	assert.Equal(t, tftpboot.DefaultTransferPort, state.DataPort)
	assert.Equal(t, Effects{ResetTimer: true, InvalidateImage: true, OpenSocket: true, Port: tftpboot.DefaultTransferPort}, effects)
	assert.Equal(t, []byte{0, 4, 0, 0}, Build(response, state))
}

func TestWriteRequestRandomTID(t *testing.T) {
	engine := testEngine()
	engine.RandomTID = true
	state := &TransferState{}
	_, effects := engine.Handle(newPacket(OpcodeWRQ, 0, nil), state)
	assert.EqualValues(t, 0x12CB, effects.Port)
	assert.EqualValues(t, 0x12CB, state.DataPort)

	// Ports that would derive to 0 use the transfer port
	pkt := newPacket(OpcodeWRQ, 0, nil)
	pkt.Port = 0x00FF
	_, effects = engine.Handle(pkt, state)
	assert.Equal(t, tftpboot.DefaultTransferPort, effects.Port)
}

func TestDataInOrder(t *testing.T) {
	engine := testEngine()
	state := &TransferState{}
	img := validImage(3*tftpboot.BlockSize + 300)
	expected := []Response{Ack, Ack, Ack, FinalAck}

	for i, want := range expected {
		block := uint16(i + 1)
		start := i * tftpboot.BlockSize
		end := min(start+tftpboot.BlockSize, len(img))
		response, effects := engine.Handle(newPacket(OpcodeData, block, img[start:end]), state)
		assert.Equal(t, want, response, "block %v", block)
		assert.True(t, effects.ResetTimer)
		assert.False(t, effects.InvalidateImage)
		assert.Equal(t, want == FinalAck, effects.CommitImage)
		if assert.NotNil(t, effects.Program) {
			assert.EqualValues(t, start, effects.Program.Addr)
			assert.Equal(t, end-start, effects.Program.Length)
		}
		assert.Equal(t, block, state.LastBlock)
		Build(response, state)
		assert.Equal(t, block, state.HighBlock)
	}
}

func TestDataWindow(t *testing.T) {
	engine := testEngine()
	payload := bytes.Repeat([]byte{0xA5}, tftpboot.BlockSize)
	for _, tc := range []struct {
		block    uint16
		response Response
	}{
		{block: 1, response: ErrorInvalidOpcode},
		{block: 2, response: ErrorInvalidOpcode},
		{block: 3, response: Ack},
		{block: 4, response: Ack},
		{block: 5, response: ErrorInvalidOpcode},
		{block: 40, response: ErrorInvalidOpcode},
	} {
		state := &TransferState{LastBlock: 3, HighBlock: 3, DataPort: 1000}
		response, effects := engine.Handle(newPacket(OpcodeData, tc.block, payload), state)
		assert.Equal(t, tc.response, response, "block %v", tc.block)
		if response == ErrorInvalidOpcode {
			assert.Nil(t, effects.Program)
			assert.True(t, effects.OpenSocket)
			assert.Equal(t, tftpboot.DefaultTransferPort, effects.Port)
			assert.EqualValues(t, 3, state.LastBlock)
			assert.EqualValues(t, 3, state.HighBlock)
		} else {
			assert.EqualValues(t, (int(tc.block)-1)*tftpboot.BlockSize, effects.Program.Addr)
			assert.Equal(t, tc.block, state.LastBlock)
		}
	}
}

func TestDataDuplicateRewritesBlock(t *testing.T) {
	engine := testEngine()
	payload := bytes.Repeat([]byte{0x11}, tftpboot.BlockSize)
	state := &TransferState{LastBlock: 2, HighBlock: 2}
	response, effects := engine.Handle(newPacket(OpcodeData, 2, payload), state)
	assert.Equal(t, Ack, response)
	assert.EqualValues(t, tftpboot.BlockSize, effects.Program.Addr)
	assert.Equal(t, []byte{0, 4, 0, 2}, Build(response, state))
	assert.EqualValues(t, 2, state.HighBlock)
}

func TestDataBeyondMaxAddr(t *testing.T) {
	engine := testEngine()
	last := uint16(engine.MaxAddr / tftpboot.BlockSize)
	payload := bytes.Repeat([]byte{0x22}, tftpboot.BlockSize)

	// Last block of the region fits exactly
	state := &TransferState{LastBlock: last - 1, HighBlock: last - 1}
	response, effects := engine.Handle(newPacket(OpcodeData, last, payload), state)
	assert.Equal(t, Ack, response)
	assert.EqualValues(t, engine.MaxAddr-tftpboot.BlockSize, effects.Program.Addr)

	// Next one is out of range
	Build(response, state)
	response, effects = engine.Handle(newPacket(OpcodeData, last+1, payload), state)
	assert.Equal(t, ErrorInvalidOpcode, response)
	assert.Nil(t, effects.Program)
}

func TestDataBlockZeroIsFull(t *testing.T) {
	engine := testEngine()
	state := &TransferState{}
	response, effects := engine.Handle(newPacket(OpcodeData, 0, validImage(tftpboot.BlockSize)), state)
	assert.Equal(t, ErrorFull, response)
	assert.Nil(t, effects.Program)
	assert.False(t, effects.CommitImage)
	assert.True(t, effects.ResetTimer)
	assert.Equal(t, append([]byte{0, 5, 0, 3}, "Full\x00"...), Build(response, state))
}

func TestDataInvalidImage(t *testing.T) {
	engine := testEngine()
	state := &TransferState{}
	payload := bytes.Repeat([]byte{0x00}, tftpboot.BlockSize)
	response, effects := engine.Handle(newPacket(OpcodeData, 1, payload), state)
	assert.Equal(t, ErrorInvalidImage, response)
	assert.Nil(t, effects.Program)
	assert.False(t, effects.CommitImage)

	// Only the first block is validated
	state = &TransferState{LastBlock: 1, HighBlock: 1}
	response, effects = engine.Handle(newPacket(OpcodeData, 2, payload), state)
	assert.Equal(t, Ack, response)
	assert.NotNil(t, effects.Program)
}

func TestDataFinalBlockPadding(t *testing.T) {
	engine := testEngine()
	state := &TransferState{}
	img := validImage(200)
	response, effects := engine.Handle(newPacket(OpcodeData, 1, img), state)
	assert.Equal(t, FinalAck, response)
	assert.True(t, effects.CommitImage)
	if assert.NotNil(t, effects.Program) {
		assert.Len(t, effects.Program.Data, 256)
		assert.Equal(t, 200, effects.Program.Length)
		assert.Equal(t, img, effects.Program.Data[:200])
		assert.Equal(t, bytes.Repeat([]byte{tftpboot.ErasedFlashValue}, 56), effects.Program.Data[200:])
	}
}

func TestDataEmptyFinalBlock(t *testing.T) {
	engine := testEngine()
	state := &TransferState{LastBlock: 1, HighBlock: 1}
	response, effects := engine.Handle(newPacket(OpcodeData, 2, nil), state)
	assert.Equal(t, FinalAck, response)
	assert.Nil(t, effects.Program)
	assert.True(t, effects.CommitImage)
}

func TestDataAcceptAll(t *testing.T) {
	engine := NewEngine(0x7000, 128, tftpboot.DefaultTransferPort, false, nil)
	state := &TransferState{}
	response, _ := engine.Handle(newPacket(OpcodeData, 1, []byte{1, 2, 3}), state)
	assert.Equal(t, FinalAck, response)
	engine.Validator = image.ValidatorFunc(func(block []byte) bool { return false })
	response, _ = engine.Handle(newPacket(OpcodeData, 1, []byte{1, 2, 3}), &TransferState{})
	assert.Equal(t, ErrorInvalidImage, response)
}

func TestOversizedPacket(t *testing.T) {
	engine := testEngine()
	state := &TransferState{}
	pkt := newPacket(OpcodeData, 1, validImage(tftpboot.BlockSize))
	pkt.Length = tftpboot.DataMaxSize + 1
	response, effects := engine.Handle(pkt, state)
	assert.Equal(t, ErrorInvalidOpcode, response)
	assert.Nil(t, effects.Program)
	assert.EqualValues(t, 0, state.LastBlock)

	// Also applies to write requests
	pkt = newPacket(OpcodeWRQ, 0, nil)
	pkt.Length = 600
	response, _ = engine.Handle(pkt, state)
	assert.Equal(t, ErrorInvalidOpcode, response)
}

func TestUnsupportedOpcodes(t *testing.T) {
	engine := testEngine()
	for _, opcode := range []uint16{OpcodeRRQ, OpcodeAck, OpcodeError} {
		state := &TransferState{LastBlock: 4, HighBlock: 4, DataPort: 1000}
		response, effects := engine.Handle(newPacket(opcode, 4, nil), state)
		assert.Equal(t, ErrorUnknown, response, opcodeName(opcode))
		assert.Equal(t, Effects{}, effects)
		assert.Equal(t, &TransferState{LastBlock: 4, HighBlock: 4, DataPort: 1000}, state)
	}
}

func TestUnknownOpcode(t *testing.T) {
	engine := testEngine()
	state := &TransferState{LastBlock: 2, HighBlock: 2}
	response, effects := engine.Handle(newPacket(9, 1, nil), state)
	assert.Equal(t, ErrorInvalidOpcode, response)
	assert.Equal(t, Effects{OpenSocket: true, Port: tftpboot.DefaultTransferPort}, effects)
	assert.Equal(t, append([]byte{0, 5, 0, 0}, "Opcode?\x00"...), Build(response, state))
	assert.EqualValues(t, 2, state.HighBlock)
}
