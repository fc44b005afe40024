package main

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/cost"
	"github.com/sells-group/decision-research/internal/metrics"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/pipeline"
	"github.com/sells-group/decision-research/internal/report"
	"github.com/sells-group/decision-research/internal/resilience"
	"github.com/sells-group/decision-research/internal/search"
	"github.com/sells-group/decision-research/internal/telemetry"
	anthropicpkg "github.com/sells-group/decision-research/pkg/anthropic"
)

// researcher is the part of the pipeline the outer surfaces depend on.
type researcher interface {
	Run(ctx context.Context, in model.PipelineInput, includeDebug bool) (*model.PipelineOutput, error)
}

// researchEnv holds everything the run/batch/serve/mcp commands share.
type researchEnv struct {
	Search   *search.Service
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Collectors
	Report   *report.Generator // nil unless requested
	Cost     *cost.Calculator
}

// initEnv validates cfg for mode and wires the search stack, metrics and
// pipeline. withReport also builds the report generator.
func initEnv(c *config.Config, mode string, withReport bool) (*researchEnv, error) {
	if withReport {
		if err := c.Validate("report"); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.NewRegistry())
	provider := strings.ToLower(strings.TrimSpace(c.Search.Provider))
	svc, err := search.New(c, search.WithStateChange(m.CircuitStateChange(provider)))
	if err != nil {
		return nil, err
	}

	p, err := pipeline.NewFromConfig(c.Pipeline, svc, newEmitter(c, m))
	if err != nil {
		return nil, err
	}

	env := &researchEnv{
		Search:   svc,
		Pipeline: p,
		Metrics:  m,
		Cost:     cost.NewCalculator(cost.RatesFromConfig(c.Pricing)),
	}

	if withReport {
		breaker := resilience.DefaultCircuitBreakerConfig()
		breaker.OnStateChange = m.CircuitStateChange("anthropic")
		guard := resilience.NewGuard("anthropic", resilience.FromRetryConfig(c.Search.Retry), breaker)
		env.Report = report.NewGenerator(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic, report.WithGuard(guard))
	}

	zap.L().Debug("env: initialized",
		zap.String("mode", mode),
		zap.String("provider", svc.Provider()),
		zap.String("gate", p.Gate().Name()),
		zap.Bool("report", withReport),
	)
	return env, nil
}

// newEmitter fans pipeline events out to the log and to Prometheus.
func newEmitter(c *config.Config, m *metrics.Collectors) telemetry.Emitter {
	return telemetry.FromConfig(c.Telemetry, m)
}

// estimate prices the search calls made so far plus any report usage.
func (e *researchEnv) estimate(rep *report.Report) cost.Estimate {
	var llm float64
	if rep != nil {
		u := rep.Usage
		llm = e.Cost.Claude(rep.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
	}
	return e.Cost.Run(e.Search.Provider(), e.Search.Calls(), llm)
}
