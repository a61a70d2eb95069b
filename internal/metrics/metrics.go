package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Pipeline counts outcomes of the aggregation pipeline operations.
type Pipeline struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inserted   prometheus.Counter
	healthy    prometheus.Gauge
}

// New registers the pipeline collectors on a private registry.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyhero",
			Subsystem: "pipeline",
			Name:      "operations_total",
			Help:      "Pipeline operations by outcome",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skyhero",
			Subsystem: "pipeline",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of pipeline operations",
			Buckets:   durationBuckets,
		}, []string{"operation"}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyhero",
			Subsystem: "ingest",
			Name:      "events_inserted_total",
			Help:      "Events newly merged into the local store",
		}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skyhero",
			Subsystem: "store",
			Name:      "healthy",
			Help:      "1 when the last integrity check passed",
		}),
	}
	p.registry.MustRegister(p.operations, p.duration, p.inserted, p.healthy,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return p
}

// Observe records one run of operation that started at start.
func (p *Pipeline) Observe(operation string, start time.Time, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.operations.WithLabelValues(operation, result).Inc()
	p.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) AddInserted(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.inserted.Add(float64(n))
}

func (p *Pipeline) SetHealthy(ok bool) {
	if p == nil {
		return
	}
	if ok {
		p.healthy.Set(1)
	} else {
		p.healthy.Set(0)
	}
}

// Handler exposes the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
