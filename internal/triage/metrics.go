package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	DelegateCallsTotal   *prometheus.CounterVec
	LLMDuration          prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carecompass_classifications_total",
			Help: "Total rule-based classifications by urgency and care setting.",
		}, []string{"urgency", "care"}),
		DelegateCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carecompass_triage_delegate_calls_total",
			Help: "Total LLM triage delegate calls by outcome (ok or a fallback reason).",
		}, []string{"outcome"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carecompass_llm_call_duration_seconds",
			Help:    "Duration of individual LLM completion calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
	}

	reg.MustRegister(
		m.ClassificationsTotal,
		m.DelegateCallsTotal,
		m.LLMDuration,
	)

	return m
}

// ObserveClassification records a rule-based classification outcome.
func (m *Metrics) ObserveClassification(v Verdict) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(string(v.Urgency), string(v.RecommendedCare)).Inc()
}
