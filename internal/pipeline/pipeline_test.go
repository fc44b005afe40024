package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/telemetry"
)

var testInput = model.PipelineInput{
	Goal:         "keep ops headcount flat",
	Decision:     "move CI to self-hosted runners",
	OutputFormat: "memo",
}

// deterministicSearcher derives sources from the query text only.
func deterministicSearcher(perQuery int) SearchFunc {
	return func(_ context.Context, query string) ([]model.Source, error) {
		h := HashQuery(query)
		out := make([]model.Source, perQuery)
		for i := range out {
			out[i] = model.Source{
				URL:      fmt.Sprintf("https://site%d.example/%s/%d", i, h[8:], i),
				Title:    fmt.Sprintf("Runner cost study %d", i),
				Snippet:  "self-hosted runners reduce queue time and compute spend",
				Content:  strings.Repeat("body ", 100),
				Provider: "fake",
			}
		}
		return out, nil
	}
}

func TestPipeline_Run_InsufficientSingleSource(t *testing.T) {
	s := &scriptedSearcher{responses: [][]model.Source{
		{{URL: "https://only.example/a", Title: "lonely"}},
	}}

	out, err := New(s).Run(context.Background(), testInput, false)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionInsufficientEvidence, out.DecisionStatus)
	assert.Less(t, out.Confidence.Overall, 0.5)
	assert.Len(t, out.Sources, 1)
	assert.Contains(t, out.Recommendation, "Safe default")
	assert.Nil(t, out.Debug)
	assert.Len(t, s.queries, 10)
}

func TestPipeline_Run_SufficientBreadth(t *testing.T) {
	var first []model.Source
	for i, d := range []string{"a.com", "b.org", "c.net", "d.io", "a.com", "b.org"} {
		first = append(first, model.Source{URL: fmt.Sprintf("https://%s/%d", d, i), Title: fmt.Sprintf("T%d", i)})
	}
	s := &scriptedSearcher{responses: [][]model.Source{first}}

	out, err := New(s).Run(context.Background(), testInput, false)

	require.NoError(t, err)
	assert.Equal(t, model.DecisionEvidenceSufficient, out.DecisionStatus)
	assert.Equal(t, 0.78, out.Confidence.Overall)
	assert.Contains(t, out.Recommendation, "1. T0 (a.com)")
	assert.Contains(t, out.Recommendation, "5. T4 (a.com)")
	assert.NotContains(t, out.Recommendation, "T5")
}

func TestPipeline_Run_CrossPassDedupe(t *testing.T) {
	shared := "https://shared.example/page"
	s := &scriptedSearcher{responses: [][]model.Source{
		// seed: 3 queries
		{{URL: shared, Title: "from seed"}, {URL: "https://s1.example"}},
		{{URL: "https://s2.example"}},
		{},
		// expand: 3 queries
		{{URL: shared, Title: "from expand"}, {URL: "https://e1.example"}},
		{{URL: "https://s2.example", Title: "dup of seed"}},
		{},
		// authority: 4 queries
		{{URL: shared, Title: "from authority"}},
		{{URL: "https://a1.example"}},
	}}

	out, err := New(s).Run(context.Background(), testInput, true)
	require.NoError(t, err)

	count := 0
	for _, src := range out.Sources {
		if src.URL == shared {
			count++
			assert.Equal(t, "from seed", src.Title)
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{shared, "https://s1.example", "https://s2.example", "https://e1.example", "https://a1.example"}, model.URLs(out.Sources))

	require.NotNil(t, out.Debug)
	require.Len(t, out.Debug.Passes, 3)
	assert.Equal(t, model.PassSeed, out.Debug.Passes[0].Pass)
	assert.Equal(t, model.PassExpand, out.Debug.Passes[1].Pass)
	assert.Equal(t, model.PassAuthority, out.Debug.Passes[2].Pass)
	assert.Len(t, out.Debug.Passes[0].Queries, 3)
	assert.Len(t, out.Debug.Passes[1].Queries, 3)
	assert.Len(t, out.Debug.Passes[2].Queries, 4)
	assert.Equal(t, 3, out.Debug.Passes[0].SourceCount)
	assert.Equal(t, 3, out.Debug.Passes[1].SourceCount)
}

func TestPipeline_Run_NoDuplicateURLs(t *testing.T) {
	out, err := New(deterministicSearcher(4)).Run(context.Background(), testInput, false)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, u := range model.URLs(out.Sources) {
		assert.False(t, seen[u], "duplicate url %s", u)
		seen[u] = true
	}
}

func TestPipeline_Run_LongGoalTruncatesFirstSeedQuery(t *testing.T) {
	in := testInput
	in.Goal = strings.Repeat("g", 2500)
	s := &scriptedSearcher{}

	out, err := New(s).Run(context.Background(), in, true)
	require.NoError(t, err)

	first := out.Debug.Passes[0].Queries[0]
	assert.True(t, first.Truncated)
	assert.LessOrEqual(t, first.UsedLength, 400)
	assert.Greater(t, first.OriginalLength, first.UsedLength)
	assert.Contains(t, first.Query, "...")
	assert.Equal(t, first.Query, s.queries[0])
	assert.True(t, strings.HasSuffix(first.Query, in.Decision))

	for _, p := range out.Debug.Passes {
		for _, q := range p.Queries {
			assert.LessOrEqual(t, q.UsedLength, 400)
			assert.Equal(t, q.OriginalLength > 400, q.Truncated)
		}
	}
}

func TestPipeline_Run_Deterministic(t *testing.T) {
	p := New(deterministicSearcher(3))

	a, err := p.Run(context.Background(), testInput, true)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), testInput, true)
	require.NoError(t, err)

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestPipeline_Run_DebugOmitted(t *testing.T) {
	out, err := New(deterministicSearcher(1)).Run(context.Background(), testInput, false)
	require.NoError(t, err)
	assert.Nil(t, out.Debug)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"debug"`)
}

func TestPipeline_Run_SearchErrorAbortsRun(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, mock.MatchedBy(func(q string) bool {
		return !strings.HasSuffix(q, "comparative analysis")
	})).Return([]model.Source{{URL: "https://x.example"}}, nil)
	s.On("Search", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.HasSuffix(q, "comparative analysis")
	})).Return(nil, errors.New("provider timeout"))

	out, err := New(s).Run(context.Background(), testInput, true)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "expand pass")
	assert.Contains(t, err.Error(), "provider timeout")
	// Three seed queries plus the failing first expand query.
	s.AssertNumberOfCalls(t, "Search", 4)
}

func TestPipeline_Run_ExpandUsesSeedKeywords(t *testing.T) {
	s := &scriptedSearcher{responses: [][]model.Source{
		{{URL: "https://a.com", Title: "Ephemeral runners", Snippet: "ephemeral autoscaling autoscaling"}},
	}}

	_, err := New(s).Run(context.Background(), testInput, false)
	require.NoError(t, err)

	require.Len(t, s.queries, 10)
	assert.Equal(t, "move CI to self-hosted runners autoscaling ephemeral runners comparative analysis", s.queries[3])
	assert.Equal(t, "move CI to self-hosted runners authoritative guidance (sources like: a.com)", s.queries[6])
	assert.Equal(t, "site:wikipedia.org move CI to self-hosted runners", s.queries[7])
}

func TestPipeline_Run_SourcesScored(t *testing.T) {
	out, err := New(deterministicSearcher(1)).Run(context.Background(), testInput, false)
	require.NoError(t, err)
	require.NotEmpty(t, out.Sources)
	for _, s := range out.Sources {
		require.NotNil(t, s.Score)
		assert.Contains(t, s.ScoreBreakdown, "content")
	}
}

func TestPipeline_Run_Telemetry(t *testing.T) {
	rec := &recordingEmitter{}

	_, err := New(deterministicSearcher(1), WithEmitter(rec)).Run(context.Background(), testInput, false)
	require.NoError(t, err)

	queries := rec.named("search.query")
	require.Len(t, queries, 10)
	runID := queries[0].fields["run_id"]
	assert.NotEmpty(t, runID)
	for _, e := range queries {
		assert.Equal(t, runID, e.fields["run_id"])
	}

	decisions := rec.named("pipeline.decision")
	require.Len(t, decisions, 1)
	assert.Equal(t, GateBreadth, decisions[0].fields["gate"])
}

func TestPipeline_Run_PanickingEmitterIgnored(t *testing.T) {
	sink := telemetry.Func(func(string, map[string]any) { panic("sink down") })
	p := New(deterministicSearcher(4), WithEmitter(sink))

	var (
		out *model.PipelineOutput
		err error
	)
	require.NotPanics(t, func() {
		out, err = p.Run(context.Background(), testInput, true)
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.DecisionEvidenceSufficient, out.DecisionStatus)
	assert.NotEmpty(t, out.Recommendation)
	require.NotNil(t, out.Debug)
	assert.Len(t, out.Debug.Passes, 3)
}

func TestPipeline_Run_ScoredGateStrategy(t *testing.T) {
	// Ten distinct domains of thin results: enough breadth, not enough quality.
	var first []model.Source
	for i := 0; i < 10; i++ {
		first = append(first, model.Source{URL: fmt.Sprintf("https://d%d.com/x", i), Snippet: "short"})
	}

	breadth, err := New(&scriptedSearcher{responses: [][]model.Source{first}}).Run(context.Background(), testInput, false)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionEvidenceSufficient, breadth.DecisionStatus)

	scored, err := New(&scriptedSearcher{responses: [][]model.Source{first}}, WithGate(DefaultScoredGate())).Run(context.Background(), testInput, false)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionInsufficientEvidence, scored.DecisionStatus)
	assert.Less(t, scored.Confidence.Overall, 0.5)
}

func TestPipeline_Run_NoSearcher(t *testing.T) {
	_, err := New(nil).Run(context.Background(), testInput, false)
	assert.ErrorContains(t, err, "no searcher")
}

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.PipelineConfig{Gate: "scored", MaxQueryLength: 120}, deterministicSearcher(1), nil)
	require.NoError(t, err)
	assert.Equal(t, GateScored, p.Gate().Name())
	assert.Equal(t, 120, p.maxQueryLen)

	_, err = NewFromConfig(config.PipelineConfig{Gate: "unknown"}, deterministicSearcher(1), nil)
	assert.Error(t, err)
}
