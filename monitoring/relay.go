package monitoring

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/spxiwh/pegasus/internal/aggregate"
	"github.com/spxiwh/pegasus/internal/broker"
	"github.com/spxiwh/pegasus/internal/identity"
	"github.com/spxiwh/pegasus/internal/record"
)

// maxLineBytes bounds one monitoring line. Lines beyond this are
// rejected as malformed rather than silently truncated.
const maxLineBytes = 64 * 1024

// Relay is the handle returned by Start and required by Stop. It owns
// the listening socket and the shutdown channel for one relay
// lifetime; all batching state is touched only by the relay task.
type Relay struct {
	identity identity.Identity
	listener net.Listener
	host     string
	port     int

	agg    *aggregate.Buffer
	fwd    *broker.Forwarder
	logger *log.Logger

	metrics *relayMetrics

	stopCh  chan struct{} // capacity 1, one writer (host), one reader (loop)
	closing chan struct{} // closed when the loop leaves the listening state
	done    chan struct{} // closed when the loop has fully exited

	state         atomic.Int32
	buffered      atomic.Int64
	stopRequested atomic.Bool
}

// run is the relay task: a single loop multiplexing the shutdown
// signal against incoming connections. Records are enriched and
// batched strictly in arrival order; there is no concurrency past the
// accept hand-off.
func (r *Relay) run() {
	defer close(r.done)

	connCh := make(chan net.Conn) // unbuffered: at most one accepted connection in flight
	acceptErr := make(chan error, 1)
	go r.acceptLoop(connCh, acceptErr)

	for {
		// Shutdown takes priority over a simultaneously ready
		// connection; the plain select below picks at random.
		select {
		case <-r.stopCh:
			r.abandonPending(connCh)
			r.drain()
			return
		default:
		}

		select {
		case <-r.stopCh:
			r.abandonPending(connCh)
			r.drain()
			return
		case conn := <-connCh:
			r.handleConn(conn)
		case err := <-acceptErr:
			// The listening socket cannot self-heal; drain and stop.
			r.logger.Printf("monitor: accept failed, shutting relay down: %v", err)
			r.drain()
			return
		}
	}
}

// abandonPending closes a connection that raced the shutdown signal.
// It is abandoned, not processed. Known data loss at shutdown.
func (r *Relay) abandonPending(connCh <-chan net.Conn) {
	select {
	case conn := <-connCh:
		r.logger.Printf("monitor: WARNING: abandoning a pending client connection at shutdown")
		r.metrics.abandoned.Inc()
		conn.Close()
	default:
	}
}

// acceptLoop hands accepted connections to the relay loop one at a
// time. Interrupted accepts are retried; any other failure is reported
// to the loop and ends accepting.
func (r *Relay) acceptLoop(connCh chan<- net.Conn, acceptErr chan<- error) {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			select {
			case acceptErr <- err:
			case <-r.closing:
			}
			return
		}
		select {
		case connCh <- conn:
		case <-r.closing:
			conn.Close()
			return
		}
	}
}

// handleConn reads at most one line from a client connection. The
// connection is closed unconditionally, success or not, before the
// loop returns to its wait.
func (r *Relay) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := readLine(conn)
	if err != nil {
		r.logger.Printf("monitor: read from %s: %v", conn.RemoteAddr(), err)
		if errors.Is(err, errLineTooLong) {
			r.metrics.malformed.Inc()
		}
		return
	}
	if !record.Valid(line) {
		r.logger.Printf("monitor: dropping line without %q prefix", record.TimestampMarker)
		r.metrics.malformed.Inc()
		return
	}

	enriched := record.Enrich(line, r.identity)
	r.metrics.received.Inc()

	batch, full := r.agg.Append(enriched)
	r.setBuffered(r.agg.Len())
	if full {
		// Synchronous by design: batches are small and a send in
		// flight must not interleave with buffer mutation.
		r.forward(batch)
	}
}

// drain flushes buffered records, releases the listening socket, and
// terminates the relay task.
func (r *Relay) drain() {
	r.state.Store(int32(StateDraining))
	close(r.closing)

	if batch, ok := r.agg.Drain(); ok {
		r.logger.Printf("monitor: sending final batch of %d record(s)", batch.Len())
		r.forward(batch)
		r.setBuffered(0)
	}

	r.listener.Close()
	r.state.Store(int32(StateStopped))
	r.logger.Printf("monitor: relay stopped")
}

// forward sends one batch best-effort. A failed send loses the batch:
// telemetry loss is acceptable, stalling or crashing the loop is not.
func (r *Relay) forward(batch aggregate.Batch) {
	if err := r.fwd.Send(context.Background(), batch); err != nil {
		r.logger.Printf("monitor: %v (dropped batch of %d record(s))", err, batch.Len())
		r.metrics.sendFailures.Inc()
		return
	}
	r.metrics.batchesSent.Inc()
}

func (r *Relay) setBuffered(n int) {
	r.buffered.Store(int64(n))
	r.metrics.buffered.Set(float64(n))
}

// errLineTooLong marks a line rejected for exceeding maxLineBytes.
var errLineTooLong = errors.New("line exceeds maximum length")

// readLine reads one line, terminated by the first newline or by
// connection EOF, bounded at maxLineBytes.
func readLine(conn net.Conn) (string, error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", fmt.Errorf("%w (%d bytes)", errLineTooLong, maxLineBytes)
		}
		return "", err
	}
	return "", io.EOF
}
