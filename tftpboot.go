// Package tftpboot is the network firmware update engine of a bootloader.
// A single peer pushes a firmware image with a TFTP write request, the image
// is programmed page by page into self-programmable memory and only marked
// bootable once the final block has been written.
package tftpboot

const (
	// Well-known TFTP control port
	DefaultPort uint16 = 69
	// Data phase port when neither the EEPROM nor the TID randomisation provide one
	DefaultTransferPort uint16 = 46969
)

// Sizes of the socket chip UDP receive header and of the TFTP fields
const (
	UdpHeaderSize    = 8
	OpcodeSize       = 2
	BlockNumberSize  = 2
	TftpHeaderSize   = OpcodeSize + BlockNumberSize
	BlockSize        = 512
	PacketMaxSize    = UdpHeaderSize + TftpHeaderSize + BlockSize
	DataMaxSize      = TftpHeaderSize + BlockSize
	ErasedFlashValue = 0xFF
)
