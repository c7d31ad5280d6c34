package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// failover calls fn for each entry in order until one succeeds. A done
// context ends the walk early.
func failover[T any](ctx context.Context, kind string, names []string, fn func(i int) (T, bool, error)) (T, error) {
	var zero T
	var errs []error
	for i, name := range names {
		res, ok, err := fn(i)
		if !ok {
			continue
		}
		if err == nil {
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if ctx.Err() != nil {
			break
		}
		if i < len(names)-1 {
			logutil.GetLogger(ctx).Warn("provider failed, try next",
				zap.String("kind", kind), zap.String("name", name), zap.Error(err))
		}
	}
	if len(errs) == 0 {
		return zero, fmt.Errorf("%w: no %s configured", ErrUnavailable, kind)
	}
	return zero, errors.Join(errs...)
}

type groupGenerator struct {
	items []GeneratorEntry
	names []string
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return &groupGenerator{items: items, names: names}
}

func (g *groupGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	return failover(ctx, "generator", g.names, func(i int) (string, bool, error) {
		gen := g.items[i].Generator
		if gen == nil {
			return "", false, nil
		}
		res, err := gen.Complete(ctx, systemPrompt, userPrompt)
		return res, true, err
	})
}

// groupEmbedder falls back across embedding models. All of them must
// produce vectors of the index dimension, Manager rejects anything else.
type groupEmbedder struct {
	items []EmbedderEntry
	names []string
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return &groupEmbedder{items: items, names: names}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return failover(ctx, "embedder", g.names, func(i int) ([]float32, bool, error) {
		e := g.items[i].Embedder
		if e == nil {
			return nil, false, nil
		}
		res, err := e.Embed(ctx, text, taskType)
		return res, true, err
	})
}

// ModelName joins the configured model names. It keys the embedding caches
// and the index meta row.
func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, name := range g.names {
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}
