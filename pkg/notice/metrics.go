package notice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of a notice pipeline.
//
// Metrics collected:
//   - imclient_notice_processed_total: Counter of notices by kind
//   - imclient_notice_unhandled_total: Counter of notices no processor consumed
//   - imclient_notice_parse_errors_total: Counter of processor failures
//   - imclient_notice_duplicates_total: Counter of notices dropped by watermark
//   - imclient_notice_malformed_total: Counter of push bodies that failed to decode
type Metrics struct {
	processed   *prometheus.CounterVec
	unhandled   *prometheus.CounterVec
	parseErrors *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	malformed   prometheus.Counter
}

// NewMetrics registers notice metrics with reg, or with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imclient",
			Subsystem: "notice",
			Name:      name,
			Help:      help,
		}, []string{"kind"})
	}

	return &Metrics{
		processed:   counter("processed_total", "Total number of notices run through the pipeline"),
		unhandled:   counter("unhandled_total", "Total number of notices no processor consumed"),
		parseErrors: counter("parse_errors_total", "Total number of processor failures"),
		duplicates:  counter("duplicates_total", "Total number of notices dropped as already applied"),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imclient",
			Subsystem: "notice",
			Name:      "malformed_total",
			Help:      "Total number of push bodies that failed to decode",
		}),
	}
}

func (m *Metrics) recordNotice(k Kind) {
	if m != nil {
		m.processed.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) recordUnhandled(k Kind) {
	if m != nil {
		m.unhandled.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) recordParseError(k Kind) {
	if m != nil {
		m.parseErrors.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) recordDuplicate(k Kind) {
	if m != nil {
		m.duplicates.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) recordMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}
