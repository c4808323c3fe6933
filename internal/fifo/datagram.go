package fifo

import (
	"encoding/binary"
	"errors"
)

// Datagrams are stored with the socket chip UDP header :
// source IP (4), source port (2), payload length (2), payload.
const DatagramHeaderSize = 8

var (
	ErrNoDatagram  = errors.New("no complete datagram in fifo")
	ErrSmallBuffer = errors.New("buffer smaller than a datagram header")
)

// WriteDatagram stores a datagram, it is dropped if it does not fit entirely
func (f *Fifo) WriteDatagram(addr [4]byte, port uint16, payload []byte) bool {
	if len(payload) > 0xFFFF || f.Space() < DatagramHeaderSize+len(payload) {
		return false
	}
	var header [DatagramHeaderSize]byte
	copy(header[:4], addr[:])
	binary.BigEndian.PutUint16(header[4:], port)
	binary.BigEndian.PutUint16(header[6:], uint16(len(payload)))
	f.Write(header[:])
	f.Write(payload)
	return true
}

// ReadDatagram drains the next datagram, header included, into buffer.
// If buffer is too small the datagram is truncated and the remainder discarded.
func (f *Fifo) ReadDatagram(buffer []byte) (int, error) {
	if len(buffer) < DatagramHeaderSize {
		return 0, ErrSmallBuffer
	}
	var header [DatagramHeaderSize]byte
	if f.Peek(header[:]) < DatagramHeaderSize {
		return 0, ErrNoDatagram
	}
	total := DatagramHeaderSize + int(binary.BigEndian.Uint16(header[6:]))
	if f.Occupied() < total {
		return 0, ErrNoDatagram
	}
	n := total
	if n > len(buffer) {
		n = len(buffer)
	}
	f.Read(buffer[:n])
	f.Skip(total - n)
	return n, nil
}
