package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-research/internal/model"
)

// Gate strategy names accepted by NewGate.
const (
	GateBreadth = "breadth"
	GateScored  = "scored"
)

const (
	snippetWeight     = 0.45
	contentWeight     = 0.55
	snippetSaturation = 300.0
	contentSaturation = 2500.0

	lowInfoContentFloor = 400
	lowInfoSnippetFloor = 80

	breadthConfidencePass = 0.78
	breadthConfidenceFail = 0.32
)

// GateResult is the verdict of an evidence gate over a merged source set.
type GateResult struct {
	Gate       string            `json:"gate"`
	Sufficient bool              `json:"sufficient"`
	Confidence float64           `json:"confidence"`
	Rationale  string            `json:"rationale"`
	Metrics    model.GateMetrics `json:"metrics"`
}

// EvidenceGate decides whether a merged source set supports a recommendation.
type EvidenceGate interface {
	Name() string
	Evaluate(sources []model.Source) GateResult
}

// NewGate returns the gate strategy registered under name. An empty name
// selects the breadth gate.
func NewGate(name string) (EvidenceGate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GateBreadth:
		return DefaultBreadthGate(), nil
	case GateScored:
		return DefaultScoredGate(), nil
	default:
		return nil, eris.Errorf("pipeline: unknown gate %q", name)
	}
}

// BreadthGate judges sufficiency purely on source and domain counts. Its
// confidence is fixed rather than derived from source quality.
type BreadthGate struct {
	MinSources int
	MinDomains int
}

// DefaultBreadthGate requires 6 sources across 4 domains.
func DefaultBreadthGate() BreadthGate {
	return BreadthGate{MinSources: 6, MinDomains: 4}
}

// Name implements EvidenceGate.
func (g BreadthGate) Name() string { return GateBreadth }

// Evaluate implements EvidenceGate.
func (g BreadthGate) Evaluate(sources []model.Source) GateResult {
	m := ComputeGateMetrics(sources)
	ok := m.TotalSources >= g.MinSources && m.UniqueDomains >= g.MinDomains

	res := GateResult{Gate: g.Name(), Sufficient: ok, Metrics: m}
	if ok {
		res.Confidence = breadthConfidencePass
		res.Rationale = fmt.Sprintf("%d sources across %d domains meet the breadth bar (>= %d sources, >= %d domains).",
			m.TotalSources, m.UniqueDomains, g.MinSources, g.MinDomains)
	} else {
		res.Confidence = breadthConfidenceFail
		res.Rationale = fmt.Sprintf("Only %d sources across %d domains; at least %d sources from %d domains are required.",
			m.TotalSources, m.UniqueDomains, g.MinSources, g.MinDomains)
	}
	return res
}

// ScoredGate judges sufficiency on per-source quality scores as well as
// breadth. It is stricter than BreadthGate.
type ScoredGate struct {
	MinSources      int
	MinDomains      int
	MinAvgScore     float64
	MinTopScore     float64
	MinTop3Avg      float64
	MaxLowInfoRatio float64
}

// DefaultScoredGate returns the standard scored thresholds.
func DefaultScoredGate() ScoredGate {
	return ScoredGate{
		MinSources:      12,
		MinDomains:      6,
		MinAvgScore:     0.45,
		MinTopScore:     0.65,
		MinTop3Avg:      0.55,
		MaxLowInfoRatio: 0.5,
	}
}

// Name implements EvidenceGate.
func (g ScoredGate) Name() string { return GateScored }

// Evaluate implements EvidenceGate.
func (g ScoredGate) Evaluate(sources []model.Source) GateResult {
	m := ComputeGateMetrics(sources)

	checks := []struct {
		ok   bool
		fail string
	}{
		{m.TotalSources >= g.MinSources, fmt.Sprintf("sources %d < %d", m.TotalSources, g.MinSources)},
		{m.UniqueDomains >= g.MinDomains, fmt.Sprintf("domains %d < %d", m.UniqueDomains, g.MinDomains)},
		{m.AvgScore >= g.MinAvgScore, fmt.Sprintf("avg score %.2f < %.2f", m.AvgScore, g.MinAvgScore)},
		{m.TopScore >= g.MinTopScore, fmt.Sprintf("top score %.2f < %.2f", m.TopScore, g.MinTopScore)},
		{m.Top3Avg >= g.MinTop3Avg, fmt.Sprintf("top-3 avg %.2f < %.2f", m.Top3Avg, g.MinTop3Avg)},
		{m.LowInfoRatio <= g.MaxLowInfoRatio, fmt.Sprintf("low-info ratio %.2f > %.2f", m.LowInfoRatio, g.MaxLowInfoRatio)},
	}

	passed := 0
	var failures []string
	for _, c := range checks {
		if c.ok {
			passed++
		} else {
			failures = append(failures, c.fail)
		}
	}

	res := GateResult{Gate: g.Name(), Sufficient: len(failures) == 0, Metrics: m}
	if res.Sufficient {
		quality := (m.AvgScore + m.Top3Avg + (1 - m.LowInfoRatio)) / 3
		res.Confidence = round2(math.Min(0.95, 0.6+0.4*quality))
		res.Rationale = fmt.Sprintf("%d sources across %d domains; avg score %.2f, top-3 avg %.2f, low-info ratio %.2f.",
			m.TotalSources, m.UniqueDomains, m.AvgScore, m.Top3Avg, m.LowInfoRatio)
	} else {
		res.Confidence = round2(0.1 + 0.3*float64(passed)/float64(len(checks)))
		res.Rationale = "Evidence below the scored bar: " + strings.Join(failures, "; ") + "."
	}
	return res
}

// ScoreSource rates one source on snippet and content length, each saturating
// at a cap so long bodies cannot dominate.
func ScoreSource(s model.Source) (float64, map[string]float64) {
	snippet := clamp01(float64(utf8.RuneCountInString(s.Snippet)) / snippetSaturation)
	content := clamp01(float64(utf8.RuneCountInString(s.Content)) / contentSaturation)
	score := snippetWeight*snippet + contentWeight*content
	return score, map[string]float64{"snippet": snippet, "content": content}
}

// ScoreSources returns copies of sources with Score and ScoreBreakdown set.
// Order is preserved.
func ScoreSources(sources []model.Source) []model.Source {
	out := make([]model.Source, len(sources))
	for i, s := range sources {
		score, breakdown := ScoreSource(s)
		s.Score = &score
		s.ScoreBreakdown = breakdown
		out[i] = s
	}
	return out
}

// ComputeGateMetrics summarizes sources. An empty set reports a low-info
// ratio of 1.
func ComputeGateMetrics(sources []model.Source) model.GateMetrics {
	m := model.GateMetrics{
		TotalSources:  len(sources),
		UniqueDomains: UniqueDomainCount(model.URLs(sources)),
		LowInfoRatio:  1,
	}
	if len(sources) == 0 {
		return m
	}

	scores := make([]float64, len(sources))
	lowInfo := 0
	sum := 0.0
	for i, s := range sources {
		scores[i], _ = ScoreSource(s)
		sum += scores[i]
		if isLowInfo(s) {
			lowInfo++
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	top := scores[:min(3, len(scores))]
	topSum := 0.0
	for _, v := range top {
		topSum += v
	}

	m.AvgScore = sum / float64(len(scores))
	m.TopScore = scores[0]
	m.Top3Avg = topSum / float64(len(top))
	m.LowInfoRatio = float64(lowInfo) / float64(len(sources))
	return m
}

func isLowInfo(s model.Source) bool {
	return utf8.RuneCountInString(s.Content) < lowInfoContentFloor ||
		utf8.RuneCountInString(s.Snippet) < lowInfoSnippetFloor
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
