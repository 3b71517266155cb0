package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports attempt outcomes as Prometheus metrics: a counter
// partitioned by status and error kind, plus duration and payload-size
// histograms.
type PrometheusSink struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	payload  prometheus.Histogram
}

var _ Sink = (*PrometheusSink)(nil)

// NewPrometheusSink creates a sink registered against reg. Pass
// prometheus.DefaultRegisterer to use the process-wide registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicetra",
			Subsystem: "pipeline",
			Name:      "attempts_total",
			Help:      "API attempts by operation, HTTP status and error kind.",
		}, []string{"operation", "status", "error_kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicetra",
			Subsystem: "pipeline",
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of individual API attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
		payload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicetra",
			Subsystem: "pipeline",
			Name:      "request_payload_bytes",
			Help:      "Request body sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{s.attempts, s.duration, s.payload} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *PrometheusSink) Record(event Event) {
	kind := event.ErrorKind
	if kind == "" {
		kind = "none"
	}
	s.attempts.WithLabelValues(event.Operation, strconv.Itoa(event.StatusCode), kind).Inc()
	s.duration.WithLabelValues(event.Operation).Observe(event.Duration.Seconds())
	s.payload.Observe(float64(event.PayloadSize))
}
