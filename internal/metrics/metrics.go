// Package metrics exports Prometheus collectors fed from pipeline telemetry.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/decision-research/internal/resilience"
)

const namespace = "decision_research"

// Collectors holds the research pipeline metrics. It implements
// telemetry.Emitter so the pipeline never touches Prometheus directly.
type Collectors struct {
	searchQueries  *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	mergedSources  prometheus.Histogram
	circuitChanges *prometheus.CounterVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg *prometheus.Registry) *Collectors {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	f := promauto.With(registerer)

	return &Collectors{
		searchQueries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Search queries issued, by pass and whether the query was truncated",
			},
			[]string{"pass", "truncated"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Pipeline decisions, by status and gate strategy",
			},
			[]string{"status", "gate"},
		),
		mergedSources: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "merged_sources",
				Help:      "Number of unique sources after merging all passes",
				Buckets:   []float64{0, 1, 3, 6, 12, 24, 48, 96},
			},
		),
		circuitChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_state_changes_total",
				Help:      "Circuit breaker transitions for external providers",
			},
			[]string{"service", "from_state", "to_state"},
		),
		gatherer: gatherer,
	}
}

// Emit implements telemetry.Emitter. Unknown events are ignored.
func (c *Collectors) Emit(event string, fields map[string]any) {
	switch event {
	case "search.query":
		c.searchQueries.WithLabelValues(label(fields["pass"]), label(fields["truncated"])).Inc()
	case "pipeline.decision":
		c.decisions.WithLabelValues(label(fields["status"]), label(fields["gate"])).Inc()
		if n, ok := fields["sources"].(int); ok {
			c.mergedSources.Observe(float64(n))
		}
	}
}

// CircuitStateChange returns a resilience.CircuitBreakerConfig.OnStateChange
// hook that counts transitions for service.
func (c *Collectors) CircuitStateChange(service string) func(from, to resilience.CircuitState) {
	return func(from, to resilience.CircuitState) {
		c.circuitChanges.WithLabelValues(service, from.String(), to.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func label(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
