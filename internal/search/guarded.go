package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/pipeline"
	"github.com/sells-group/decision-research/internal/resilience"
)

// Guarded wraps a provider with a rate limiter, a per-attempt timeout and a
// resilience.Guard. Any nil part is skipped.
type Guarded struct {
	Next    pipeline.Searcher
	Limiter *rate.Limiter
	Guard   *resilience.Guard
	Timeout time.Duration
}

// Search implements pipeline.Searcher. The limiter is consulted once per attempt so
// retries are throttled too.
func (g *Guarded) Search(ctx context.Context, query string) ([]model.Source, error) {
	return resilience.Call(ctx, g.Guard, func(ctx context.Context) ([]model.Source, error) {
		if g.Limiter != nil {
			if err := g.Limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "search: rate limit wait")
			}
		}
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		return g.Next.Search(ctx, query)
	})
}

// Counting counts provider calls, including retried attempts, for cost
// estimation.
type Counting struct {
	Next  pipeline.Searcher
	calls atomic.Int64
}

// Search implements pipeline.Searcher.
func (c *Counting) Search(ctx context.Context, query string) ([]model.Source, error) {
	c.calls.Add(1)
	return c.Next.Search(ctx, query)
}

// Calls returns the number of calls made so far.
func (c *Counting) Calls() int {
	return int(c.calls.Load())
}
