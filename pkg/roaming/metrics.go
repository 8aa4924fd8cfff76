package roaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts history page fetches.
//
// Metrics collected:
//   - imclient_roaming_pages_total: Counter of page requests by variant and outcome
type Metrics struct {
	pages *prometheus.CounterVec
}

// NewMetrics registers roaming metrics with reg, or with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		pages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "imclient",
			Subsystem: "roaming",
			Name:      "pages_total",
			Help:      "Total number of history page requests by variant and outcome",
		}, []string{"variant", "outcome"}),
	}
}

func (m *Metrics) recordPage(variant string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pages.WithLabelValues(variant, outcome).Inc()
}
