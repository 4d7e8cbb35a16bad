package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
)

// Metrics counts allocations per side on a private registry
type Metrics struct {
	registry    *prometheus.Registry
	allocations *prometheus.CounterVec
	fills       *prometheus.CounterVec
	filledQty   *prometheus.CounterVec
	unfilled    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metaexchange",
			Name:      name,
			Help:      help,
		}, []string{"side"})
	}
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		allocations: counter("allocations_total", "Allocations executed."),
		fills:       counter("fills_total", "Fills produced across all allocations."),
		filledQty:   counter("filled_quantity_total", "Asset quantity filled."),
		unfilled:    counter("unfilled_allocations_total", "Allocations that left part of the request unfilled."),
	}
	m.registry.MustRegister(
		m.allocations, m.fills, m.filledQty, m.unfilled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one allocation
func (m *Metrics) Observe(res allocation.Result) {
	side := res.Side.String()
	m.allocations.WithLabelValues(side).Inc()
	m.fills.WithLabelValues(side).Add(float64(len(res.Fills)))
	m.filledQty.WithLabelValues(side).Add(res.Filled.InexactFloat64())
	if res.Unfilled.IsPositive() {
		m.unfilled.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
