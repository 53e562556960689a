// Package diagnostics bundles the swarm's ambient observability stack:
// structured logging (zap) and an optional Prometheus metrics sink, plus a
// small helper for accumulating config-validation errors. The dispatcher
// never logs on a successful delivery, only on a drop or a fatal condition —
// mirroring the teacher's "the cache never logs on the hot path" policy. A
// successful unicast delivery only increments a counter on the Sink.
package diagnostics

import "github.com/prometheus/client_golang/prometheus"

// Sink is the internal interface abstracting away the concrete metrics
// backend. A Swarm constructed without WithMetrics uses NoopSink and pays
// nothing for instrumentation; one constructed with a *prometheus.Registry
// uses NewPromSink.
type Sink interface {
	IncDropped(kind string)
	IncUnicastDispatched(kind string)
	IncBroadcastDelivered(kind string, n int)
	IncResized(kind string)
	IncDied(kind string)
	SetInstanceCount(kind string, n int)
}

type noopSink struct{}

func (noopSink) IncDropped(string)                 {}
func (noopSink) IncUnicastDispatched(string)        {}
func (noopSink) IncBroadcastDelivered(string, int)  {}
func (noopSink) IncResized(string)                  {}
func (noopSink) IncDied(string)                     {}
func (noopSink) SetInstanceCount(string, int)       {}

// NoopSink returns a Sink that discards everything.
func NoopSink() Sink { return noopSink{} }

type promSink struct {
	dropped   *prometheus.CounterVec
	unicast   *prometheus.CounterVec
	broadcast *prometheus.CounterVec
	resized   *prometheus.CounterVec
	died      *prometheus.CounterVec
	instances *prometheus.GaugeVec
}

// NewPromSink registers the swarm's metric family on reg and returns a Sink
// backed by it. Metrics are labeled by actor-kind name so that a process
// hosting several Swarms exposes them all on one registry.
func NewPromSink(reg *prometheus.Registry) Sink {
	label := []string{"kind"}
	s := &promSink{
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "dispatch_dropped_total",
			Help:      "Messages dropped because the recipient id or version was stale.",
		}, label),
		unicast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "unicast_dispatched_total",
			Help:      "Unicast packets delivered to a live recipient.",
		}, label),
		broadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "broadcast_delivered_total",
			Help:      "Broadcast deliveries to original recipients.",
		}, label),
		resized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "resizes_total",
			Help:      "Instances migrated to a new size class after a handler grew them.",
		}, label),
		died: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "deaths_total",
			Help:      "Instances removed after a handler returned Fate.Die.",
		}, label),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "instances",
			Help:      "Current live instance count.",
		}, label),
	}
	reg.MustRegister(s.dropped, s.unicast, s.broadcast, s.resized, s.died, s.instances)
	return s
}

func (s *promSink) IncDropped(kind string) { s.dropped.WithLabelValues(kind).Inc() }
func (s *promSink) IncUnicastDispatched(kind string) {
	s.unicast.WithLabelValues(kind).Inc()
}
func (s *promSink) IncBroadcastDelivered(kind string, n int) {
	s.broadcast.WithLabelValues(kind).Add(float64(n))
}
func (s *promSink) IncResized(kind string) { s.resized.WithLabelValues(kind).Inc() }
func (s *promSink) IncDied(kind string)    { s.died.WithLabelValues(kind).Inc() }
func (s *promSink) SetInstanceCount(kind string, n int) {
	s.instances.WithLabelValues(kind).Set(float64(n))
}
