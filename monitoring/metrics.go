package monitoring

import "github.com/prometheus/client_golang/prometheus"

// relayMetrics holds per-relay collectors. Collectors are functional
// whether or not a registry was supplied; registration only controls
// exposition.
type relayMetrics struct {
	received     prometheus.Counter
	malformed    prometheus.Counter
	batchesSent  prometheus.Counter
	sendFailures prometheus.Counter
	abandoned    prometheus.Counter
	buffered     prometheus.Gauge
}

func newRelayMetrics(reg prometheus.Registerer) *relayMetrics {
	m := &relayMetrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegasus_mon_records_received_total",
			Help: "Valid monitoring records accepted and enriched.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegasus_mon_records_malformed_total",
			Help: "Lines discarded for a missing timestamp marker or excessive length.",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegasus_mon_batches_sent_total",
			Help: "Batches successfully published to the broker.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegasus_mon_batch_send_failures_total",
			Help: "Batches lost to broker transport failures.",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegasus_mon_connections_abandoned_total",
			Help: "Pending client connections abandoned at shutdown.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pegasus_mon_records_buffered",
			Help: "Records currently buffered toward the next batch.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.received, m.malformed, m.batchesSent, m.sendFailures, m.abandoned, m.buffered)
	}
	return m
}
