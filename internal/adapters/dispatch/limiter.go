// Package dispatch contains ActionSink implementations and decorators.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polystrat/internal/domain"
	"github.com/alejandrodnm/polystrat/internal/ports"
)

type rateLimitedSink struct {
	sink    ports.ActionSink
	limiter *rate.Limiter
}

// RateLimited decorates a sink with a token-bucket rate limit of rps
// orders per second and the given burst. With rps <= 0 the sink is
// returned unwrapped.
func RateLimited(sink ports.ActionSink, rps float64, burst int) ports.ActionSink {
	if rps <= 0 {
		return sink
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedSink{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// PlaceOrder waits for a token, then delegates. Context cancellation
// while waiting surfaces as an error without touching the inner sink.
func (s *rateLimitedSink) PlaceOrder(ctx context.Context, req domain.OrderRequest) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("dispatch.PlaceOrder: rate limit: %w", err)
	}
	return s.sink.PlaceOrder(ctx, req)
}
