package ai

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedGenerator struct {
	next    IGenerator
	limiter *rate.Limiter
}

// WrapRateLimitGenerator blocks each call until the limiter admits it.
// A non positive rps disables limiting.
func WrapRateLimitGenerator(next IGenerator, rps float64, burst int) IGenerator {
	if rps <= 0 {
		return next
	}
	return &rateLimitedGenerator{next: next, limiter: newLimiter(rps, burst)}
}

func (g *rateLimitedGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.Complete(ctx, systemPrompt, userPrompt)
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func WrapRateLimitEmbedder(next IEmbedder, rps float64, burst int) IEmbedder {
	if rps <= 0 {
		return next
	}
	return &rateLimitedEmbedder{next: next, limiter: newLimiter(rps, burst)}
}

func (e *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, text, taskType)
}

func (e *rateLimitedEmbedder) ModelName() string {
	return e.next.ModelName()
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
