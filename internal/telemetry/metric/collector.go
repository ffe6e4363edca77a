package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status is a point-in-time view of a running session.
type Status struct {
	CurrentFrame   int32
	ConfirmedFrame int32
	// FrameAdvantage is how many frames this peer runs ahead of the slowest
	// remote input it has received.
	FrameAdvantage int32
}

// StatusFunc samples the session on each scrape. It is called from the
// scrape goroutine and must be safe for concurrent use.
type StatusFunc func() Status

// Collector exports session status sampled at scrape time.
type Collector struct {
	status StatusFunc

	currentDesc   *prometheus.Desc
	advantageDesc *prometheus.Desc
	lagDesc       *prometheus.Desc
}

// NewCollector creates a collector reading from status.
func NewCollector(status StatusFunc) *Collector {
	return &Collector{
		status: status,
		currentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "current_frame"),
			"Next frame the scheduler will simulate.", nil, nil),
		advantageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "frame_advantage"),
			"Frames ahead of the slowest received remote input.", nil, nil),
		lagDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "unconfirmed_frames"),
			"Simulated frames not yet confirmed.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.currentDesc
	ch <- c.advantageDesc
	ch <- c.lagDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.status == nil {
		return
	}
	s := c.status()
	unconfirmed := s.CurrentFrame - 1 - s.ConfirmedFrame
	if unconfirmed < 0 {
		unconfirmed = 0
	}
	ch <- prometheus.MustNewConstMetric(c.currentDesc, prometheus.GaugeValue, float64(s.CurrentFrame))
	ch <- prometheus.MustNewConstMetric(c.advantageDesc, prometheus.GaugeValue, float64(s.FrameAdvantage))
	ch <- prometheus.MustNewConstMetric(c.lagDesc, prometheus.GaugeValue, float64(unconfirmed))
}
