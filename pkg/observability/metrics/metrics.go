// Package metrics exposes Prometheus collectors for the inference server
// via github.com/prometheus/client_golang, replacing a hand-rolled text
// exposition format with the standard registry/collector model.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the server publishes, scoped to a
// private prometheus.Registry so tests can construct isolated instances.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BatchSize       *prometheus.HistogramVec
	QueueDepth      *prometheus.GaugeVec
	WorkerGroupSize *prometheus.GaugeVec
	GPUMemoryUsedGB *prometheus.GaugeVec
	GPUUtilization  *prometheus.GaugeVec
}

// New constructs a Registry with every collector registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amdinfer",
			Name:      "requests_total",
			Help:      "Total inference requests received, by model.",
		}, []string{"model"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amdinfer",
			Name:      "request_errors_total",
			Help:      "Total inference requests that failed, by model.",
		}, []string{"model"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amdinfer",
			Name:      "request_duration_seconds",
			Help:      "Inference request latency from enqueue to response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		BatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amdinfer",
			Name:      "batch_size",
			Help:      "Number of requests collected into a dispatched batch.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"worker"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amdinfer",
			Name:      "queue_depth",
			Help:      "Requests currently waiting in a worker's batcher.",
		}, []string{"worker"}),
		WorkerGroupSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amdinfer",
			Name:      "worker_group_size",
			Help:      "Number of running instances in a worker's group.",
		}, []string{"worker"}),
		GPUMemoryUsedGB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amdinfer",
			Name:      "gpu_memory_used_gb",
			Help:      "GPU memory in use, by device index.",
		}, []string{"device"}),
		GPUUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amdinfer",
			Name:      "gpu_utilization_ratio",
			Help:      "GPU compute utilization in [0,1], by device index.",
		}, []string{"device"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestErrors,
		m.RequestDuration,
		m.BatchSize,
		m.QueueDepth,
		m.WorkerGroupSize,
		m.GPUMemoryUsedGB,
		m.GPUUtilization,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
