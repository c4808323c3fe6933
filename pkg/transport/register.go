// Package transport creates the socket implementations usable by the server.
// Implementations register themselves from an init() function, the caller
// only needs to import them for side effects.
package transport

import (
	"fmt"
	"sort"

	"github.com/samsamfire/tftpboot"
)

type NewTransportFunc func(address string) (tftpboot.Transport, error)

var registry = make(map[string]NewTransportFunc)

// Register a new transport type
// This should be called inside an init() function of the implementation
func Register(name string, newTransport NewTransportFunc) {
	registry[name] = newTransport
}

// New creates a transport of the given registered type.
// The address is implementation specific, e.g. the local IP to bind to for udp.
func New(name string, address string) (tftpboot.Transport, error) {
	createTransport, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported transport : %v (available %v)", name, Available())
	}
	return createTransport(address)
}

// Available returns the registered transport names
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
