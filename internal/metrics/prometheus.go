package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polyinsider/whalewatch/internal/engine"
)

// Cycle outcomes used as label values.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Prometheus holds the refresh-cycle collectors on their own registry.
type Prometheus struct {
	registry *prometheus.Registry

	Cycles         *prometheus.CounterVec
	DependencyErrs *prometheus.CounterVec
	NewWhales      prometheus.Counter
	CollectionSize prometheus.Gauge
	CycleDuration  prometheus.Histogram
	LastSuccess    prometheus.Gauge
}

// NewPrometheus creates the collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "whalewatch"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome",
		}, []string{"outcome"}),
		DependencyErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_errors_total",
			Help:      "Recovered dependency failures by dependency",
		}, []string{"dependency"}),
		NewWhales: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_whale_trades_total",
			Help:      "Qualifying trades seen in fetched pages",
		}),
		CollectionSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collection_size",
			Help:      "Whale trades retained after the last successful cycle",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Refresh cycle duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle",
		}),
	}
}

// Observe records a cycle result.
func (p *Prometheus) Observe(res engine.Result) {
	p.CycleDuration.Observe(res.Stats.Duration.Seconds())

	if res.FetchErr != nil {
		p.DependencyErrs.WithLabelValues("upstream").Inc()
	}
	if res.LoadErr != nil {
		p.DependencyErrs.WithLabelValues("store_read").Inc()
	}
	if res.SaveErr != nil {
		p.DependencyErrs.WithLabelValues("store_write").Inc()
	}

	switch {
	case !res.OK:
		p.Cycles.WithLabelValues(OutcomeFailed).Inc()
		return
	case res.Degraded():
		p.Cycles.WithLabelValues(OutcomeDegraded).Inc()
	default:
		p.Cycles.WithLabelValues(OutcomeOK).Inc()
	}

	p.NewWhales.Add(float64(res.Stats.NewCount))
	p.CollectionSize.Set(float64(res.Stats.TotalCount))
	p.LastSuccess.SetToCurrentTime()
}

// Handler returns the exposition handler for the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
