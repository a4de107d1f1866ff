package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the chore tracker.
type Metrics struct {
	Operations     *prometheus.CounterVec
	TasksLogged    prometheus.Counter
	SnapshotSaves  prometheus.Counter
	SnapshotBytes  prometheus.Gauge
	LoadFallbacks  *prometheus.CounterVec
	BackupsWritten prometheus.Counter
}

// New creates and registers the collectors on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chores_operations_total",
			Help: "Chore service operations by name and outcome",
		}, []string{"operation", "outcome"}),
		TasksLogged: factory.NewCounter(prometheus.CounterOpts{
			Name: "chores_tasks_logged_total",
			Help: "Total number of tasks logged across households",
		}),
		SnapshotSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "chores_snapshot_saves_total",
			Help: "Total number of encrypted snapshot writes",
		}),
		SnapshotBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chores_snapshot_bytes",
			Help: "Size of the last written snapshot envelope",
		}),
		LoadFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chores_snapshot_load_fallbacks_total",
			Help: "Loads that discarded an unreadable snapshot and started fresh",
		}, []string{"reason"}),
		BackupsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "chores_backups_written_total",
			Help: "Total number of snapshot backups written",
		}),
	}
}

// ObserveOperation records the outcome of a service operation.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementTasksLogged() {
	if m == nil {
		return
	}
	m.TasksLogged.Inc()
}

func (m *Metrics) ObserveSnapshotSave(size int) {
	if m == nil {
		return
	}
	m.SnapshotSaves.Inc()
	m.SnapshotBytes.Set(float64(size))
}

func (m *Metrics) IncrementLoadFallback(reason string) {
	if m == nil {
		return
	}
	m.LoadFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementBackupsWritten() {
	if m == nil {
		return
	}
	m.BackupsWritten.Inc()
}
