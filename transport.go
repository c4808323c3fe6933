package tftpboot

// Transport abstracts the UDP socket of a hardwired network chip.
// Received datagrams are stored in a ring buffer, each one prefixed by the
// chip's 8 byte UDP header : source IP (4), source port (2), payload length (2).
type Transport interface {
	Open(port uint16) error                   // (Re)open the socket bound to port, closing any previous one
	Close() error                             // Close the socket
	Available() (int, error)                  // Number of bytes waiting in the receive buffer
	ReceiveFlag() bool                        // Receive-ready interrupt flag
	ClearReceiveFlag()                        // Acknowledge the receive-ready flag
	Receive(buffer []byte) (int, error)       // Drain one datagram (header + payload) into buffer
	SetDestination(addr [4]byte, port uint16) // Destination of the next Send
	Send(data []byte) error                   // Send a datagram and wait for completion
}

// Watchdog bounds the duration of a transfer.
// It is fed on every accepted write request or data packet.
type Watchdog interface {
	Reset()
	Expired() bool
}
