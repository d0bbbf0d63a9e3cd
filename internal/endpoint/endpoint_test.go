package endpoint

import (
	"fmt"
	"net"
	"testing"
	"time"
)

func TestAllocate_ReturnsUsableEndpoint(t *testing.T) {
	t.Parallel()

	listener, host, port, err := Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer listener.Close()

	if host == "" {
		t.Fatal("Allocate() returned empty hostname")
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("Allocate() port = %d, want 1..65535", port)
	}

	// The reported port must be the one the listener actually holds.
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 2*time.Second)
	if err != nil {
		t.Fatalf("dialing allocated port %d: %v", port, err)
	}
	conn.Close()
}

func TestAllocate_DistinctPorts(t *testing.T) {
	t.Parallel()

	a, _, portA, err := Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer a.Close()

	b, _, portB, err := Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer b.Close()

	if portA == portB {
		t.Fatalf("both allocations returned port %d", portA)
	}
}
