// Package metrics exposes the scrapeable counters and gauges the
// teacher's go.mod already pulls in github.com/prometheus/client_golang
// for. Nothing in spec.md's Non-goals excludes observability, so the
// core is instrumented the way the teacher instruments its own
// long-running daemon: a handful of named counters/gauges registered
// once at process start, updated inline by the components that own the
// events they describe.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge the Job Scheduler and Peer
// Transport update. Construct one with New and pass it to both.
type Metrics struct {
	JobsScheduled       prometheus.Counter
	JobsCancelled       prometheus.Counter
	JobsRun             prometheus.Counter
	JobsFailed          prometheus.Counter
	PeerConnections     prometheus.Gauge
	RendezvousPublished prometheus.Gauge
	CodecParseErrors    prometheus.Counter
	DiscoveryScans      prometheus.Counter
}

// New registers a fresh Metrics set on reg. Pass prometheus.NewRegistry()
// in tests to avoid colliding with the default global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "scheduler", Name: "jobs_scheduled_total",
			Help: "Total number of jobs accepted by schedule().",
		}),
		JobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "scheduler", Name: "jobs_cancelled_total",
			Help: "Total number of jobs that ended via onCancel.",
		}),
		JobsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "scheduler", Name: "jobs_run_total",
			Help: "Total number of jobs that completed via onEndAction.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "scheduler", Name: "jobs_failed_total",
			Help: "Total number of jobs whose action returned an error.",
		}),
		PeerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trashd", Subsystem: "peers", Name: "connections",
			Help: "Current number of live peer connections.",
		}),
		RendezvousPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trashd", Subsystem: "peers", Name: "rendezvous_files_published",
			Help: "Current number of rendezvous files this process has published.",
		}),
		CodecParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "wire", Name: "parse_errors_total",
			Help: "Total number of undefined command bytes dropped by the wire codec.",
		}),
		DiscoveryScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trashd", Subsystem: "peers", Name: "discovery_scans_total",
			Help: "Total number of rendezvous-directory scans actually performed (post-throttle).",
		}),
	}
	reg.MustRegister(
		m.JobsScheduled, m.JobsCancelled, m.JobsRun, m.JobsFailed,
		m.PeerConnections, m.RendezvousPublished, m.CodecParseErrors, m.DiscoveryScans,
	)
	return m
}

// The Inc* methods are nil-receiver safe so callers can thread a *Metrics
// that may be nil (tests, or a caller that doesn't care about metrics)
// through scheduler and peers without a nil check at every call site.

func (m *Metrics) IncJobsScheduled() {
	if m != nil {
		m.JobsScheduled.Inc()
	}
}

func (m *Metrics) IncJobsCancelled() {
	if m != nil {
		m.JobsCancelled.Inc()
	}
}

func (m *Metrics) IncJobsRun() {
	if m != nil {
		m.JobsRun.Inc()
	}
}

func (m *Metrics) IncJobsFailed() {
	if m != nil {
		m.JobsFailed.Inc()
	}
}

func (m *Metrics) IncPeerConnections() {
	if m != nil {
		m.PeerConnections.Inc()
	}
}

func (m *Metrics) DecPeerConnections() {
	if m != nil {
		m.PeerConnections.Dec()
	}
}

func (m *Metrics) IncRendezvousPublished() {
	if m != nil {
		m.RendezvousPublished.Inc()
	}
}

func (m *Metrics) DecRendezvousPublished() {
	if m != nil {
		m.RendezvousPublished.Dec()
	}
}

func (m *Metrics) IncCodecParseErrors() {
	if m != nil {
		m.CodecParseErrors.Inc()
	}
}

func (m *Metrics) IncDiscoveryScans() {
	if m != nil {
		m.DiscoveryScans.Inc()
	}
}
