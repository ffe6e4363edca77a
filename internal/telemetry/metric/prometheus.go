package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goudanet"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Simulation metrics
	FramesAdvanced   prometheus.Counter
	Rollbacks        prometheus.Counter
	RollbackDepth    prometheus.Histogram
	PredictedInputs  prometheus.Counter
	PredictionStalls prometheus.Counter
	ConfirmedFrame   prometheus.Gauge
	Desyncs          prometheus.Counter

	// Network metrics
	DatagramsDropped  *prometheus.CounterVec
	InputsReceived    *prometheus.CounterVec
	DiscoveryMessages *prometheus.CounterVec
	PeersConnected    prometheus.Gauge

	// Storage metrics
	JournalWriteBytes prometheus.Counter
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// NewRegistry creates a new metrics registry with Go runtime and process
// collectors registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.FramesAdvanced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_advanced_total",
		Help:      "Frames simulated for the first time.",
	})
	r.Rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollbacks_total",
		Help:      "Rollbacks triggered by mispredicted remote input.",
	})
	r.RollbackDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rollback_depth_frames",
		Help:      "Frames re-simulated per rollback.",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
	})
	r.PredictedInputs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predicted_inputs_total",
		Help:      "Remote inputs substituted by prediction.",
	})
	r.PredictionStalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_stalls_total",
		Help:      "Ticks skipped because the prediction window was full.",
	})
	r.ConfirmedFrame = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "confirmed_frame",
		Help:      "Last frame with every participant's input confirmed.",
	})
	r.Desyncs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "desyncs_total",
		Help:      "Confirmed-state checksum mismatches between peers.",
	})
	r.DatagramsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datagrams_dropped_total",
		Help:      "Datagrams dropped before reaching the scheduler.",
	}, []string{"reason"})
	r.InputsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inputs_received_total",
		Help:      "Remote inputs received, by outcome.",
	}, []string{"result"})
	r.DiscoveryMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_messages_total",
		Help:      "Discovery handshake messages received, by outcome.",
	}, []string{"result"})
	r.PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peers_connected",
		Help:      "Rendezvous stream connections currently registered.",
	})
	r.JournalWriteBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_write_bytes_total",
		Help:      "Bytes appended to the confirmed-input journal.",
	})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.FramesAdvanced,
		r.Rollbacks,
		r.RollbackDepth,
		r.PredictedInputs,
		r.PredictionStalls,
		r.ConfirmedFrame,
		r.Desyncs,
		r.DatagramsDropped,
		r.InputsReceived,
		r.DiscoveryMessages,
		r.PeersConnected,
		r.JournalWriteBytes,
	)
	return r
}

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Register adds a collector to the registry.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// ObserveAdvance records one first-time frame advance.
func (r *Registry) ObserveAdvance() {
	if r == nil {
		return
	}
	r.FramesAdvanced.Inc()
}

// ObserveRollback records a rollback that re-simulated depth frames.
func (r *Registry) ObserveRollback(depth int) {
	if r == nil {
		return
	}
	r.Rollbacks.Inc()
	r.RollbackDepth.Observe(float64(depth))
}

// AddPredicted records n predicted inputs.
func (r *Registry) AddPredicted(n int) {
	if r == nil || n == 0 {
		return
	}
	r.PredictedInputs.Add(float64(n))
}

// IncStall records a tick skipped at the prediction threshold.
func (r *Registry) IncStall() {
	if r == nil {
		return
	}
	r.PredictionStalls.Inc()
}

// SetConfirmedFrame updates the confirmed frame gauge.
func (r *Registry) SetConfirmedFrame(f int32) {
	if r == nil {
		return
	}
	r.ConfirmedFrame.Set(float64(f))
}

// IncDesync records a detected desync.
func (r *Registry) IncDesync() {
	if r == nil {
		return
	}
	r.Desyncs.Inc()
}

// IncDropped records a dropped datagram.
func (r *Registry) IncDropped(reason string) {
	if r == nil {
		return
	}
	r.DatagramsDropped.WithLabelValues(reason).Inc()
}

// RecordInput records a received remote input ("accepted", "stale").
func (r *Registry) RecordInput(result string) {
	if r == nil {
		return
	}
	r.InputsReceived.WithLabelValues(result).Inc()
}

// RecordDiscovery records a discovery message ("accepted", "malformed", "self").
func (r *Registry) RecordDiscovery(result string) {
	if r == nil {
		return
	}
	r.DiscoveryMessages.WithLabelValues(result).Inc()
}

// SetPeersConnected updates the rendezvous connection gauge.
func (r *Registry) SetPeersConnected(n int) {
	if r == nil {
		return
	}
	r.PeersConnected.Set(float64(n))
}

// AddJournalBytes records bytes appended to the journal.
func (r *Registry) AddJournalBytes(n int) {
	if r == nil {
		return
	}
	r.JournalWriteBytes.Add(float64(n))
}
