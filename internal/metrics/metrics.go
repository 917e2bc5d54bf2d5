// Package metrics owns the Prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricCorreccionesConciliacion = "distribuidora_conciliacion_correcciones_total"
)

// Metricas groups the application collectors behind a private registry so
// tests can build as many instances as they like.
type Metricas struct {
	registry     *prometheus.Registry
	correcciones *prometheus.CounterVec
}

func New() *Metricas {
	registry := prometheus.NewRegistry()
	m := &Metricas{
		registry: registry,
		correcciones: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCorreccionesConciliacion,
				Help: "StockGlobal rows overwritten by the reconciliation guard, by container type.",
			},
			[]string{"tipo"},
		),
	}
	registry.MustRegister(
		m.correcciones,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CorreccionConciliacion counts one guard correction for tipo.
func (m *Metricas) CorreccionConciliacion(tipo string) {
	m.correcciones.WithLabelValues(tipo).Inc()
}

// Correcciones exposes the counter vector for assertions.
func (m *Metricas) Correcciones() *prometheus.CounterVec { return m.correcciones }

func (m *Metricas) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
