package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const dimensionCheckText = "dimension check"

type ProviderSpec struct {
	Provider string
	Model    string
	Data     interface{}
}

type ManagerConfig struct {
	Retry             RetryPolicy
	RequestsPerSecond float64
	Burst             int
	// Dimension is the expected embedding length, 0 skips the check.
	Dimension int
}

// Manager is the embedder and generator the rest of the program talks to.
// It layers rate limiting and retries over the failover groups and checks
// every response before handing it out.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	m := &Manager{cfg: cfg}
	if generator != nil {
		generator = WrapRateLimitGenerator(generator, cfg.RequestsPerSecond, cfg.Burst)
		m.generator = WrapRetryGenerator(generator, cfg.Retry)
	}
	if embedder != nil {
		embedder = WrapRateLimitEmbedder(embedder, cfg.RequestsPerSecond, cfg.Burst)
		m.embedder = WrapRetryEmbedder(embedder, cfg.Retry)
	}
	return m
}

func BuildGenerator(specs []ProviderSpec) (IGenerator, error) {
	items := make([]GeneratorEntry, 0, len(specs))
	for _, spec := range specs {
		p, err := NewProvider(spec.Provider, providerArgs(spec.Data))
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", spec.Provider, err)
		}
		items = append(items, GeneratorEntry{
			Name:      p.Name() + ":" + spec.Model,
			Generator: NewGenerator(p, spec.Model),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no generator configured")
	}
	return NewGroupGenerator(items), nil
}

func BuildEmbedder(specs []ProviderSpec) (IEmbedder, error) {
	items := make([]EmbedderEntry, 0, len(specs))
	for _, spec := range specs {
		p, err := NewEmbedProvider(spec.Provider, providerArgs(spec.Data))
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", spec.Provider, err)
		}
		e := NewEmbedder(p, spec.Model)
		items = append(items, EmbedderEntry{Name: e.ModelName(), Embedder: e})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no embedder configured")
	}
	return NewGroupEmbedder(items), nil
}

func providerArgs(data interface{}) interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}

func (m *Manager) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	resp, err := m.generator.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	vec, err := m.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(vec, m.cfg.Dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

func checkDimension(vec []float32, dim int) error {
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)
	}
	return nil
}

type dimensionGuard struct {
	next IEmbedder
	dim  int
}

// WrapDimensionGuard rejects vectors whose length is not dim. It belongs
// outside the embedding caches, which may hold vectors of an older model
// configuration.
func WrapDimensionGuard(next IEmbedder, dim int) IEmbedder {
	if dim <= 0 {
		return next
	}
	return &dimensionGuard{next: next, dim: dim}
}

func (g *dimensionGuard) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec, err := g.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(vec, g.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

func (g *dimensionGuard) ModelName() string {
	return g.next.ModelName()
}

func (m *Manager) ModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// VerifyDimension embeds a fixed text once so a misconfigured embedding model is
// reported at startup instead of at the first ingest.
func (m *Manager) VerifyDimension(ctx context.Context) error {
	_, err := m.Embed(ctx, dimensionCheckText, TaskRetrievalDocument)
	return err
}
