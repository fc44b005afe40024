package resilience

import (
	"context"
)

// Guard combines retries with a circuit breaker for one provider. Each
// attempt passes through the breaker; an open circuit ends the retry loop.
type Guard struct {
	Service string
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

// NewGuard builds a Guard whose retries are logged under service.
func NewGuard(service string, retry RetryConfig, breaker CircuitBreakerConfig) *Guard {
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger(service, "call")
	}
	return &Guard{
		Service: service,
		Retry:   retry,
		Breaker: NewCircuitBreaker(breaker),
	}
}

// Call runs fn under g. A nil Guard calls fn directly.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	return DoVal(ctx, g.Retry, func(ctx context.Context) (T, error) {
		if g.Breaker == nil {
			return fn(ctx)
		}
		return ExecuteVal(ctx, g.Breaker, fn)
	})
}
