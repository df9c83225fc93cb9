// Package metrics wires the broadcast stack's counters and gauges into
// Prometheus's client library. The protocol never depends on whether
// anything scrapes these -- they are instrumentation, not control flow.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every counter/gauge a single Node's engines update. One
// instance is registered per node so a multi-node demo process can
// distinguish them via the "node" label.
type Metrics struct {
	RCDelivered  prometheus.Counter
	RCForwarded  prometheus.Counter
	BRBDelivered prometheus.Counter
	BRBSent      prometheus.Counter
	RCODelivered prometheus.Counter
	PendingSize  prometheus.Gauge
	EchoSetSize  prometheus.Gauge
	ReadySetSize prometheus.Gauge
}

// New registers a fresh set of metrics for the given node id on reg. Passing
// a nil registry is valid and returns a usable-but-unregistered Metrics,
// which is convenient for tests that don't care about scraping.
func New(reg prometheus.Registerer, nodeID int) *Metrics {
	labels := prometheus.Labels{"node": strconv.Itoa(nodeID)}
	m := &Metrics{
		RCDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "broadcast_rc_delivered_total",
			Help:        "Total RC-layer deliveries at this node.",
			ConstLabels: labels,
		}),
		RCForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "broadcast_rc_forwarded_total",
			Help:        "Total RC packets sent by this node, its own broadcasts included.",
			ConstLabels: labels,
		}),
		BRBDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "broadcast_brb_delivered_total",
			Help:        "Total BRB-layer deliveries at this node.",
			ConstLabels: labels,
		}),
		BRBSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "broadcast_brb_frames_sent_total",
			Help:        "Total SEND/ECHO/READY frames emitted by this node.",
			ConstLabels: labels,
		}),
		RCODelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "broadcast_rco_delivered_total",
			Help:        "Total RCO-layer deliveries at this node.",
			ConstLabels: labels,
		}),
		PendingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "broadcast_rco_pending_size",
			Help:        "Current size of the RCO pending set.",
			ConstLabels: labels,
		}),
		EchoSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "broadcast_brb_echo_set_size",
			Help:        "Size of the most recently updated BRB echo set.",
			ConstLabels: labels,
		}),
		ReadySetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "broadcast_brb_ready_set_size",
			Help:        "Size of the most recently updated BRB ready set.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RCDelivered, m.RCForwarded, m.BRBDelivered, m.BRBSent,
			m.RCODelivered, m.PendingSize, m.EchoSetSize, m.ReadySetSize)
	}
	return m
}
