package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// RetryPolicy bounds retries of a single provider call. AttemptTimeout
// applies to each attempt separately, 0 disables it.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

func isPermanent(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrUnavailable)
}

func retryCall[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var res T
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		callCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		out, err := fn(callCtx)
		if err != nil {
			if isPermanent(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = out
		return nil
	}, p.newBackOff(ctx), func(err error, wait time.Duration) {
		logutil.GetLogger(ctx).Warn("provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	return res, err
}

type retryGenerator struct {
	next   IGenerator
	policy RetryPolicy
}

func WrapRetryGenerator(next IGenerator, policy RetryPolicy) IGenerator {
	return &retryGenerator{next: next, policy: policy}
}

func (g *retryGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	return retryCall(ctx, g.policy, "complete", func(ctx context.Context) (string, error) {
		return g.next.Complete(ctx, systemPrompt, userPrompt)
	})
}

type retryEmbedder struct {
	next   IEmbedder
	policy RetryPolicy
}

func WrapRetryEmbedder(next IEmbedder, policy RetryPolicy) IEmbedder {
	return &retryEmbedder{next: next, policy: policy}
}

func (e *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return retryCall(ctx, e.policy, "embed", func(ctx context.Context) ([]float32, error) {
		return e.next.Embed(ctx, text, taskType)
	})
}

func (e *retryEmbedder) ModelName() string {
	return e.next.ModelName()
}
