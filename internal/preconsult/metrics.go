package preconsult

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the pre-consult subsystem. All
// methods are nil-safe so callers can pass a nil *Metrics in tests.
type Metrics struct {
	SubmitsTotal      *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	TasksCreatedTotal prometheus.Counter
	TasksRemovedTotal prometheus.Counter
}

// NewMetrics registers and returns pre-consult metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carecompass_preconsult_submits_total",
			Help: "Total pre-consult submissions by urgency and persistence outcome.",
		}, []string{"urgency", "outcome"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carecompass_preconsult_transitions_total",
			Help: "Total clinician status transitions by action and persistence outcome.",
		}, []string{"action", "outcome"}),
		TasksCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carecompass_screening_tasks_created_total",
			Help: "Total screening tasks derived from accepted pre-consults.",
		}),
		TasksRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carecompass_screening_tasks_removed_total",
			Help: "Total screening tasks removed by deferrals.",
		}),
	}

	reg.MustRegister(
		m.SubmitsTotal,
		m.TransitionsTotal,
		m.TasksCreatedTotal,
		m.TasksRemovedTotal,
	)

	return m
}

func outcomeLabel(persisted bool) string {
	if persisted {
		return "persisted"
	}
	return "store_failed"
}

// ObserveSubmit records a submission.
func (m *Metrics) ObserveSubmit(urgency string, persisted bool) {
	if m == nil {
		return
	}
	m.SubmitsTotal.WithLabelValues(urgency, outcomeLabel(persisted)).Inc()
}

// ObserveTransition records a clinician action.
func (m *Metrics) ObserveTransition(action string, persisted bool) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, outcomeLabel(persisted)).Inc()
}

// ObserveTaskCreated records a derived screening task.
func (m *Metrics) ObserveTaskCreated() {
	if m == nil {
		return
	}
	m.TasksCreatedTotal.Inc()
}

// ObserveTaskRemoved records a screening task removal.
func (m *Metrics) ObserveTaskRemoved() {
	if m == nil {
		return
	}
	m.TasksRemovedTotal.Inc()
}
