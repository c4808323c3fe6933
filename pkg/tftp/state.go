package tftp

// TransferState is the working state of one transfer.
// It is reset by every accepted write request.
type TransferState struct {
	LastBlock uint16 // Last accepted data block
	HighBlock uint16 // Highest acknowledged block, only ever increases during a transfer
	DataPort  uint16 // Port of the data phase
	Flashing  bool   // Set once a packet was received
}

func (state *TransferState) reset() {
	state.LastBlock = 0
	state.HighBlock = 0
}

// InWindow reports whether block may be accepted, i.e. it is the highest
// acknowledged block or the one after it
func (state *TransferState) InWindow(block uint16) bool {
	return block >= state.HighBlock && uint32(block) <= uint32(state.HighBlock)+1
}
