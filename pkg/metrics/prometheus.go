// Package metrics exports engine events as Prometheus metrics.
package metrics

import (
	"strconv"

	"Aethertone/pkg/modem"
	"Aethertone/pkg/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aethertone"

// Collector implements modem.Observer. It is safe to share between the
// engines of several layers.
type Collector struct {
	FramesAnalyzed    prometheus.Counter
	MarkersDetected   *prometheus.CounterVec
	ReceptionsDropped *prometheus.CounterVec
	PayloadsReceived  *prometheus.CounterVec
	PayloadsCorrected *prometheus.CounterVec
	PayloadSize       prometheus.Histogram
	FramesSent        *prometheus.CounterVec
}

var _ modem.Observer = (*Collector)(nil)

// NewCollector creates all metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		FramesAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_analyzed_total",
			Help:      "Total number of audio frames run through the spectrum analyzer",
		}),
		MarkersDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_detected_total",
			Help:      "Total number of start markers detected",
		}, []string{"protocol"}),
		ReceptionsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receptions_dropped_total",
			Help:      "Total number of receptions abandoned after a marker",
		}, []string{"reason"}),
		PayloadsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_received_total",
			Help:      "Total number of payloads decoded",
		}, []string{"protocol"}),
		PayloadsCorrected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_corrected_total",
			Help:      "Total number of decoded payloads that needed error correction",
		}, []string{"protocol"}),
		PayloadSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_size_bytes",
			Help:      "Size of decoded payloads",
			Buckets:   prometheus.LinearBuckets(0, 20, 8), // 0 to 140 bytes
		}),
		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of audio frames synthesized",
		}, []string{"protocol"}),
	}
}

func protocolLabel(id int) string {
	if p, ok := protocol.ByID(id); ok {
		return p.Name
	}
	return strconv.Itoa(id)
}

func (c *Collector) FrameAnalyzed() {
	c.FramesAnalyzed.Inc()
}

func (c *Collector) MarkerDetected(protocolID int) {
	c.MarkersDetected.WithLabelValues(protocolLabel(protocolID)).Inc()
}

func (c *Collector) ReceptionDropped(reason string) {
	c.ReceptionsDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) PayloadReceived(protocolID, length int, corrected bool) {
	label := protocolLabel(protocolID)
	c.PayloadsReceived.WithLabelValues(label).Inc()
	if corrected {
		c.PayloadsCorrected.WithLabelValues(label).Inc()
	}
	c.PayloadSize.Observe(float64(length))
}

func (c *Collector) SegmentSent(protocolID, frames int) {
	c.FramesSent.WithLabelValues(protocolLabel(protocolID)).Add(float64(frames))
}
