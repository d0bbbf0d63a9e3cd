// Package endpoint allocates the ephemeral TCP endpoint a relay
// listens on for one lifetime.
package endpoint

import (
	"fmt"
	"net"
	"os"
)

// Allocate opens a listening socket on an OS-assigned port on the
// wildcard address, reads the port back, and resolves the local
// hostname. Any failure releases a partially opened listener; callers
// treat all errors as fatal configuration errors, never retried.
func Allocate() (net.Listener, string, int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, "", 0, fmt.Errorf("endpoint: listen: %w", err)
	}

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, "", 0, fmt.Errorf("endpoint: unexpected listener address type %T", listener.Addr())
	}

	host, err := os.Hostname()
	if err != nil {
		listener.Close()
		return nil, "", 0, fmt.Errorf("endpoint: hostname: %w", err)
	}

	return listener, host, addr.Port, nil
}
