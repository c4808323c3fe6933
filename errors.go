package tftpboot

import "errors"

var (
	ErrTimeout        = errors.New("transfer timed out, no valid packet received")
	ErrNotOpen        = errors.New("socket is not open")
	ErrPacketTooShort = errors.New("packet shorter than the udp header")
	ErrNoDestination  = errors.New("no destination set for send")
	ErrIllegalConfig  = errors.New("illegal configuration")
)
