// Package monitoring embeds a best-effort telemetry relay in a
// task-launcher process. The relay listens on an ephemeral TCP
// endpoint published through the environment, reads one monitoring
// line per connection from a co-located child process, enriches each
// line with workflow identity, and forwards bounded batches to a
// remote message broker.
package monitoring

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spxiwh/pegasus/internal/aggregate"
	"github.com/spxiwh/pegasus/internal/broker"
	"github.com/spxiwh/pegasus/internal/endpoint"
	"github.com/spxiwh/pegasus/internal/identity"
)

// Environment keys published for the child process after a successful
// start. They share the lookup mechanism of the consumed identity keys.
const (
	EnvEnabled  = "MON"
	EnvInterval = "MON_INTERVAL"
	EnvPID      = "MON_PID"
	EnvHost     = "MON_HOST"
	EnvPort     = "MON_PORT"
)

// DefaultInterval is published when Options.Interval is unset. The
// child process reads it as its emission cadence in seconds.
const DefaultInterval = 60 * time.Second

// Options configures one relay lifetime.
type Options struct {
	// Interval is the monitoring interval advertised to the child
	// process. Zero means DefaultInterval.
	Interval time.Duration

	// AggregationFactor is the number of records per forwarded
	// batch. Values below 1 behave as 1.
	AggregationFactor int

	// Logger receives relay diagnostics. Nil means the standard
	// logger.
	Logger *log.Logger

	// Metrics, when non-nil, has the relay's collectors registered
	// on it. Give each relay instance its own registry.
	Metrics prometheus.Registerer
}

// State is the relay loop's lifecycle phase.
type State int32

const (
	StateListening State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Status is a point-in-time snapshot of a relay.
type Status struct {
	State    string `json:"state"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	PID      int    `json:"pid"`
	Buffered int    `json:"buffered"`
}

// Start collects identity from the environment, allocates the
// listening endpoint, publishes it for the child process, and launches
// the relay task. Configuration errors are returned synchronously with
// nothing left running; callers must not Stop a relay that failed to
// start.
func Start(opts Options) (*Relay, error) {
	id, err := identity.Collect()
	if err != nil {
		return nil, err
	}

	listener, host, port, err := endpoint.Allocate()
	if err != nil {
		return nil, err
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if err := publishEndpoint(host, port, opts.Interval); err != nil {
		listener.Close()
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Relay{
		identity: id,
		listener: listener,
		host:     host,
		port:     port,
		agg:      aggregate.NewBuffer(opts.AggregationFactor),
		fwd:      broker.New(id.BrokerURL, id.Credentials, id.WorkflowUUID),
		logger:   logger,
		metrics:  newRelayMetrics(opts.Metrics),
		stopCh:   make(chan struct{}, 1),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.state.Store(int32(StateListening))

	logger.Printf("monitor: relay listening on %s:%d (workflow %s)", host, port, id.WorkflowUUID)
	go r.run()

	return r, nil
}

// publishEndpoint advertises the relay endpoint through the
// environment so child processes spawned afterwards inherit it.
func publishEndpoint(host string, port int, interval time.Duration) error {
	pairs := [...][2]string{
		{EnvEnabled, "enabled"},
		{EnvInterval, strconv.Itoa(int(interval / time.Second))},
		{EnvPID, strconv.Itoa(os.Getpid())},
		{EnvHost, host},
		{EnvPort, strconv.Itoa(port)},
	}
	for _, kv := range pairs {
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("monitor: publish %s: %w", kv[0], err)
		}
	}
	return nil
}

// Stop signals the relay task to drain and blocks until it has fully
// exited and released the listening socket. Exactly one Stop per relay
// lifetime; further calls, or a call after the loop terminated on its
// own, return an error.
func (r *Relay) Stop() error {
	if r == nil {
		return errors.New("monitor: Stop on nil relay")
	}
	if !r.stopRequested.CompareAndSwap(false, true) {
		return errors.New("monitor: relay already stopped")
	}

	select {
	case <-r.done:
		// Loop-fatal listener error took the relay down first. The
		// shutdown signal has nowhere to go; report it rather than
		// pretending the stop was delivered.
		return errors.New("monitor: relay loop already exited")
	case r.stopCh <- struct{}{}:
	}

	<-r.done
	return nil
}

// Host returns the hostname the relay published.
func (r *Relay) Host() string { return r.host }

// Port returns the TCP port the relay listens on.
func (r *Relay) Port() int { return r.port }

// State returns the loop's current lifecycle phase.
func (r *Relay) State() State { return State(r.state.Load()) }

// Status snapshots the relay for status surfaces.
func (r *Relay) Status() Status {
	return Status{
		State:    r.State().String(),
		Host:     r.host,
		Port:     r.port,
		PID:      os.Getpid(),
		Buffered: int(r.buffered.Load()),
	}
}

// Done is closed once the relay task has fully exited.
func (r *Relay) Done() <-chan struct{} { return r.done }
