// Package pipeline runs the three-pass evidence campaign behind a decision
// question and gates the merged sources.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/telemetry"
)

// Pipeline sequences the seed, expand and authority passes. It holds no state
// between Run calls and is safe to share across goroutines.
type Pipeline struct {
	searcher    Searcher
	gate        EvidenceGate
	emitter     telemetry.Emitter
	maxQueryLen int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGate overrides the default breadth gate.
func WithGate(g EvidenceGate) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.gate = g
		}
	}
}

// WithEmitter sets the telemetry sink. The default discards events. A
// panicking sink is recovered and never aborts a run.
func WithEmitter(e telemetry.Emitter) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.emitter = telemetry.Safe(e)
		}
	}
}

// WithMaxQueryLength overrides DefaultMaxQueryLength.
func WithMaxQueryLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxQueryLen = n
		}
	}
}

// New creates a Pipeline that searches through searcher.
func New(searcher Searcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher:    searcher,
		gate:        DefaultBreadthGate(),
		emitter:     telemetry.Nop{},
		maxQueryLen: DefaultMaxQueryLength,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewFromConfig creates a Pipeline using the gate and query limit from cfg.
func NewFromConfig(cfg config.PipelineConfig, searcher Searcher, emitter telemetry.Emitter) (*Pipeline, error) {
	gate, err := NewGate(cfg.Gate)
	if err != nil {
		return nil, err
	}
	return New(searcher,
		WithGate(gate),
		WithEmitter(emitter),
		WithMaxQueryLength(cfg.MaxQueryLength),
	), nil
}

// Gate returns the active evidence gate.
func (p *Pipeline) Gate() EvidenceGate { return p.gate }

// Run executes seed, expand and authority passes in order, merges their
// sources and gates the result. A search failure aborts the whole run and no
// partial output is returned.
func (p *Pipeline) Run(ctx context.Context, in model.PipelineInput, includeDebug bool) (*model.PipelineOutput, error) {
	if p.searcher == nil {
		return nil, eris.New("pipeline: no searcher configured")
	}

	runID := uuid.NewString()
	emitter := telemetry.With(p.emitter, map[string]any{"run_id": runID})
	log := zap.L().With(zap.String("run_id", runID), zap.String("gate", p.gate.Name()))
	log.Info("pipeline: starting research run")
	start := time.Now()

	pass := func(name model.PassName, queries []string) (*PassResult, error) {
		passStart := time.Now()
		res, err := RunPass(ctx, name, queries, p.searcher, emitter, p.maxQueryLen)
		if err != nil {
			log.Error("pipeline: pass failed", zap.String("pass", string(name)), zap.Error(err))
			return nil, err
		}
		log.Info("pipeline: pass complete",
			zap.String("pass", string(name)),
			zap.Int("queries", len(queries)),
			zap.Int("sources", res.Debug.SourceCount),
			zap.Int("domains", res.Debug.UniqueDomains),
			zap.Int64("duration_ms", time.Since(passStart).Milliseconds()),
		)
		return res, nil
	}

	seed, err := pass(model.PassSeed, SeedQueries(in))
	if err != nil {
		return nil, err
	}

	expand, err := pass(model.PassExpand, ExpandQueries(in, seed.Sources))
	if err != nil {
		return nil, err
	}

	seen := make([]model.Source, 0, len(seed.Sources)+len(expand.Sources))
	seen = append(seen, seed.Sources...)
	seen = append(seen, expand.Sources...)
	authority, err := pass(model.PassAuthority, AuthorityQueries(in, seen))
	if err != nil {
		return nil, err
	}

	all := make([]model.Source, 0, len(seed.Raw)+len(expand.Raw)+len(authority.Raw))
	all = append(all, seed.Raw...)
	all = append(all, expand.Raw...)
	all = append(all, authority.Raw...)
	merged := ScoreSources(DedupeByURL(all))

	verdict := p.gate.Evaluate(merged)

	out := &model.PipelineOutput{
		Sources: merged,
		Confidence: model.ConfidenceOverview{
			Overall:   verdict.Confidence,
			Rationale: verdict.Rationale,
		},
	}
	if verdict.Sufficient {
		out.DecisionStatus = model.DecisionEvidenceSufficient
		out.Recommendation = FormatRecommendation(in, merged)
	} else {
		out.DecisionStatus = model.DecisionInsufficientEvidence
		out.Recommendation = FormatSafeDefault(in)
	}
	if includeDebug {
		out.Debug = &model.DebugInfo{
			Passes: []model.DebugPass{seed.Debug, expand.Debug, authority.Debug},
		}
	}

	emitter.Emit("pipeline.decision", map[string]any{
		"status":     string(out.DecisionStatus),
		"gate":       verdict.Gate,
		"confidence": verdict.Confidence,
		"sources":    verdict.Metrics.TotalSources,
		"domains":    verdict.Metrics.UniqueDomains,
	})
	log.Info("pipeline: research run complete",
		zap.String("status", string(out.DecisionStatus)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Int("sources", len(merged)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return out, nil
}
