package search

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/decision-research/pkg/jina"
	"github.com/sells-group/decision-research/pkg/perplexity"
	"github.com/sells-group/decision-research/pkg/tavily"
)

// --- Tavily Mock ---

type mockTavily struct {
	mock.Mock
}

func (m *mockTavily) Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tavily.SearchResponse), args.Error(1)
}

// --- Jina Mock ---

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query, len(opts))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

// --- Perplexity Mock ---

type mockPerplexity struct {
	mock.Mock
}

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}
