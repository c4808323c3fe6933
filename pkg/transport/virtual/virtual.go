// Package virtual is an in-memory socket chip used for testing.
// Datagrams from a simulated peer are injected with [Socket.Inject] and
// everything the server sends is recorded.
package virtual

import (
	"errors"
	"sync"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/internal/fifo"
	"github.com/samsamfire/tftpboot/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// Per socket receive memory of a W5100
const DefaultBufferSize = 2048

var ErrBufferFull = errors.New("receive buffer full, datagram dropped")

func init() {
	transport.Register("virtual", NewVirtualSocket)
}

// A datagram sent by the server
type Datagram struct {
	Addr [4]byte
	Port uint16
	Data []byte
}

type Socket struct {
	mu       sync.Mutex
	rx       *fifo.Fifo
	open     bool
	port     uint16
	flag     bool
	destAddr [4]byte
	destPort uint16
	hasDest  bool
	sent     []Datagram
	opened   []uint16
}

func NewSocket(bufferSize int) *Socket {
	return &Socket{rx: fifo.NewFifo(bufferSize)}
}

func NewVirtualSocket(address string) (tftpboot.Transport, error) {
	return NewSocket(DefaultBufferSize), nil
}

// Open (re)opens the socket, pending received data is lost
func (s *Socket) Open(port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.port = port
	s.flag = false
	s.rx.Reset()
	s.opened = append(s.opened, port)
	log.Debugf("[VIRTUAL] socket open on port %v", port)
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.flag = false
	s.rx.Reset()
	return nil
}

func (s *Socket) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, tftpboot.ErrNotOpen
	}
	return s.rx.Occupied(), nil
}

func (s *Socket) ReceiveFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flag
}

func (s *Socket) ClearReceiveFlag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flag = false
}

func (s *Socket) Receive(buffer []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, tftpboot.ErrNotOpen
	}
	return s.rx.ReadDatagram(buffer)
}

func (s *Socket) SetDestination(addr [4]byte, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destAddr = addr
	s.destPort = port
	s.hasDest = true
}

func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return tftpboot.ErrNotOpen
	}
	if !s.hasDest {
		return tftpboot.ErrNoDestination
	}
	datagram := Datagram{Addr: s.destAddr, Port: s.destPort, Data: make([]byte, len(data))}
	copy(datagram.Data, data)
	s.sent = append(s.sent, datagram)
	return nil
}

// Inject a datagram coming from a peer, as if received by the chip
func (s *Socket) Inject(addr [4]byte, port uint16, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return tftpboot.ErrNotOpen
	}
	if !s.rx.WriteDatagram(addr, port, payload) {
		return ErrBufferFull
	}
	s.flag = true
	return nil
}

// Sent returns every datagram sent so far
func (s *Socket) Sent() []Datagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make([]Datagram, len(s.sent))
	copy(sent, s.sent)
	return sent
}

// LastSent returns the last datagram sent, ok is false if nothing was sent
func (s *Socket) LastSent() (datagram Datagram, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Datagram{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// Opened returns the ports the socket was opened on, in order
func (s *Socket) Opened() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	opened := make([]uint16, len(s.opened))
	copy(opened, s.opened)
	return opened
}

func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Socket) Port() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}
