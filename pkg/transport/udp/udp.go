// Package udp implements the socket primitives on top of host UDP sockets.
// A background routine copies incoming datagrams into a ring buffer so that
// the server keeps the polling model of a hardwired socket chip.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/samsamfire/tftpboot"
	"github.com/samsamfire/tftpboot/internal/fifo"
	"github.com/samsamfire/tftpboot/pkg/transport"
	log "github.com/sirupsen/logrus"
)

const DefaultBufferSize = 8192

func init() {
	transport.Register("udp", NewUdpSocket)
}

type Socket struct {
	mu   sync.Mutex
	host net.IP
	conn *net.UDPConn
	rx   *fifo.Fifo
	flag bool
	dest *net.UDPAddr
	wg   sync.WaitGroup
}

// Create a new socket bound to the given local IPv4 address, empty means any
func NewSocket(address string) (*Socket, error) {
	host := net.IPv4zero
	if address != "" {
		host = net.ParseIP(address)
		if host == nil || host.To4() == nil {
			return nil, fmt.Errorf("invalid ipv4 address : %q", address)
		}
	}
	return &Socket{host: host, rx: fifo.NewFifo(DefaultBufferSize)}, nil
}

func NewUdpSocket(address string) (tftpboot.Transport, error) {
	return NewSocket(address)
}

// Open closes the current socket if any and listens on port.
// Port 0 lets the system choose, see [Socket.LocalPort].
func (s *Socket) Open(port uint16) error {
	if err := s.Close(); err != nil {
		log.Warnf("[UDP] error closing previous socket : %v", err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: s.host, Port: int(port)})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.flag = false
	s.rx.Reset()
	s.mu.Unlock()
	log.Debugf("[UDP] socket open on %v", conn.LocalAddr())
	s.wg.Add(1)
	go s.handleReception(conn)
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.flag = false
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	s.wg.Wait()
	return err
}

// Handle incoming traffic until the connection is closed
func (s *Socket) handleReception(conn *net.UDPConn) {
	defer s.wg.Done()
	buffer := make([]byte, 0xFFFF)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Errorf("[UDP] listening routine has closed because : %v", err)
			}
			return
		}
		ip := addr.IP.To4()
		if ip == nil {
			continue
		}
		s.mu.Lock()
		if s.conn != conn {
			s.mu.Unlock()
			return
		}
		if s.rx.WriteDatagram([4]byte(ip), uint16(addr.Port), buffer[:n]) {
			s.flag = true
		} else {
			log.Warnf("[UDP] receive buffer full, dropped %v bytes from %v", n, addr)
		}
		s.mu.Unlock()
	}
}

func (s *Socket) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
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
	if s.conn == nil {
		return 0, tftpboot.ErrNotOpen
	}
	return s.rx.ReadDatagram(buffer)
}

func (s *Socket) SetDestination(addr [4]byte, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest = &net.UDPAddr{IP: net.IPv4(addr[0], addr[1], addr[2], addr[3]), Port: int(port)}
}

func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	conn, dest := s.conn, s.dest
	s.mu.Unlock()
	if conn == nil {
		return tftpboot.ErrNotOpen
	}
	if dest == nil {
		return tftpboot.ErrNoDestination
	}
	_, err := conn.WriteToUDP(data, dest)
	return err
}

// LocalPort returns the port the socket is bound to, 0 if closed
func (s *Socket) LocalPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return uint16(s.conn.LocalAddr().(*net.UDPAddr).Port)
}
