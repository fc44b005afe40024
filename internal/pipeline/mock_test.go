package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/decision-research/internal/model"
)

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.Source, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Source), args.Error(1)
}

// --- Scripted Searcher ---

// scriptedSearcher returns responses[i] for the i-th call and records queries.
// Calls past the end of the script return no sources.
type scriptedSearcher struct {
	mu        sync.Mutex
	responses [][]model.Source
	queries   []string
}

func (s *scriptedSearcher) Search(_ context.Context, query string) ([]model.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.queries)
	s.queries = append(s.queries, query)
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, nil
}

// --- Recording Emitter ---

type recordedEvent struct {
	name   string
	fields map[string]any
}

type recordingEmitter struct {
	events []recordedEvent
}

func (r *recordingEmitter) Emit(event string, fields map[string]any) {
	r.events = append(r.events, recordedEvent{name: event, fields: fields})
}

func (r *recordingEmitter) named(name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}
