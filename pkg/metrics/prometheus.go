// Package metrics exports workflow measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osflow"

// Prometheus records transitions and approval decisions on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	approvalsTotal     *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Workflow transitions by OS type, operation and outcome",
			},
			[]string{"os_type", "operation", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Time spent applying a workflow transition",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"os_type", "operation"},
		),
		approvalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_decisions_total",
				Help:      "Approval decisions by kind and resulting status",
			},
			[]string{"kind", "status"},
		),
	}

	registry.MustRegister(
		p.transitionsTotal,
		p.transitionDuration,
		p.approvalsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) Transition(osType models.OSType, operation, outcome string, duration time.Duration) {
	p.transitionsTotal.WithLabelValues(string(osType), operation, outcome).Inc()
	p.transitionDuration.WithLabelValues(string(osType), operation).Observe(duration.Seconds())
}

func (p *Prometheus) ApprovalDecision(kind models.ApprovalKind, status models.ApprovalStatus) {
	p.approvalsTotal.WithLabelValues(string(kind), string(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (p *Prometheus) Gatherer() prometheus.Gatherer {
	return p.registry
}
