package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitalvas/waypoint/route"
)

// metrics holds the Prometheus metrics of a Controller. It also observes
// the loader cache.
type metrics struct {
	transitions       *prometheus.CounterVec
	staleJoins        prometheus.Counter
	loading           prometheus.Gauge
	loaderInvocations *prometheus.CounterVec
	loaderReuses      *prometheus.CounterVec
	loaderErrors      *prometheus.CounterVec
}

// newMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of navigation transitions started",
		}, []string{"action"}),

		staleJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_joins_total",
			Help:      "Total number of awaited transitions dropped because a newer one started",
		}),

		loading: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading",
			Help:      "1 while a transition waits for its loaders, 0 otherwise",
		}),

		loaderInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_invocations_total",
			Help:      "Total number of loader invocations",
		}, []string{"loader"}),

		loaderReuses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_reuses_total",
			Help:      "Total number of loader results carried over from the previous navigation",
		}, []string{"loader"}),

		loaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_errors_total",
			Help:      "Total number of loader invocations that failed",
		}, []string{"loader"}),
	}
}

func (m *metrics) setLoading(loading bool) {
	if loading {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
}

func loaderLabel(l *route.Loader) string {
	if name := l.Name(); name != "" {
		return name
	}
	return "anonymous"
}

func (m *metrics) Invoked(l *route.Loader) {
	m.loaderInvocations.WithLabelValues(loaderLabel(l)).Inc()
}

func (m *metrics) Reused(l *route.Loader) {
	m.loaderReuses.WithLabelValues(loaderLabel(l)).Inc()
}

func (m *metrics) Failed(l *route.Loader, _ error) {
	m.loaderErrors.WithLabelValues(loaderLabel(l)).Inc()
}
