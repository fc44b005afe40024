package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/telemetry"
)

const previewLength = 80

// Searcher issues one web search query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Source, error)
}

// SearchFunc adapts a plain function to Searcher.
type SearchFunc func(ctx context.Context, query string) ([]model.Source, error)

// Search calls f.
func (f SearchFunc) Search(ctx context.Context, query string) ([]model.Source, error) {
	return f(ctx, query)
}

// PassResult is the outcome of one search pass.
type PassResult struct {
	// Raw holds every returned source in issue order, duplicates included.
	Raw []model.Source
	// Sources is Raw deduplicated by URL.
	Sources []model.Source
	Debug   model.DebugPass
}

// RunPass issues queries one at a time, in order, through searcher. Any search
// error aborts the pass; retries belong to the searcher.
func RunPass(ctx context.Context, pass model.PassName, queries []string, searcher Searcher, emitter telemetry.Emitter, maxQueryLen int) (*PassResult, error) {
	emitter = telemetry.Safe(emitter)

	res := &PassResult{
		Debug: model.DebugPass{Pass: pass, Queries: make([]model.QueryTrace, 0, len(queries))},
	}

	for _, q := range queries {
		trace := TruncateQuery(q, maxQueryLen)
		res.Debug.Queries = append(res.Debug.Queries, trace)

		emitter.Emit("search.query", map[string]any{
			"pass":            string(pass),
			"truncated":       trace.Truncated,
			"original_length": trace.OriginalLength,
			"used_length":     trace.UsedLength,
			"hash":            trace.Hash,
			"preview":         preview(trace.Query),
		})

		found, err := searcher.Search(ctx, trace.Query)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: %s pass search %s", pass, trace.Hash)
		}
		res.Raw = append(res.Raw, found...)
	}

	res.Sources = DedupeByURL(res.Raw)
	res.Debug.SourceCount = len(res.Sources)
	res.Debug.UniqueDomains = UniqueDomainCount(model.URLs(res.Sources))
	return res, nil
}

func preview(q string) string {
	r := []rune(q)
	if len(r) <= previewLength {
		return q
	}
	return string(r[:previewLength])
}
