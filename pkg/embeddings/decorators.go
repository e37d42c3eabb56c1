package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/folio/pkg/vector"
)

// WithTimeout bounds every Embed call on e to d. A call that runs past its
// deadline fails with vector.ErrProviderUnavailable. A non-positive d returns
// e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	emb, err := t.next.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, vector.ErrProviderUnavailable) {
			return nil, fmt.Errorf("%w: embedding timed out after %s: %w", vector.ErrProviderUnavailable, t.timeout, err)
		}
		return nil, err
	}
	return emb, nil
}

func (t *timeoutEmbedder) Close() error {
	return t.next.Close()
}

// WithRateLimit throttles calls to e with a token bucket of rps requests per
// second and the given burst. A non-positive rps returns e unchanged.
func WithRateLimit(e Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return e
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type rateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %w", vector.ErrProviderUnavailable, err)
	}
	return r.next.Embed(ctx, text)
}

func (r *rateLimitedEmbedder) Close() error {
	return r.next.Close()
}
