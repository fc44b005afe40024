package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/pipeline"
)

// newTestPipeline returns a pipeline whose searcher answers each query with
// two sources on fresh domains, enough for the breadth gate.
func newTestPipeline() *pipeline.Pipeline {
	var n atomic.Int64
	return pipeline.New(pipeline.SearchFunc(func(_ context.Context, query string) ([]model.Source, error) {
		i := n.Add(2)
		return []model.Source{
			{URL: fmt.Sprintf("https://site%d.example/a", i), Title: "Result " + query, Snippet: "Relevant findings about the decision with enough detail."},
			{URL: fmt.Sprintf("https://site%d.example/b", i+1), Title: "Second " + query, Snippet: "More findings."},
		}, nil
	}))
}

// failingPipeline returns a pipeline whose searcher always errors.
func failingPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.SearchFunc(func(context.Context, string) ([]model.Source, error) {
		return nil, fmt.Errorf("provider down")
	}))
}
