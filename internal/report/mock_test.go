package report

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/decision-research/pkg/anthropic"
)

// --- Anthropic Client Mock ---

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 900, OutputTokens: 200},
	}
}
