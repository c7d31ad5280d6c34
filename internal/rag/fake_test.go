package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/pdfqa/internal/model"
)

type countingGenerator struct {
	calls  int
	system string
	user   string
	out    string
	err    error
}

func (g *countingGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	g.calls++
	g.system = systemPrompt
	g.user = userPrompt
	return g.out, g.err
}

type stubEmbedder struct {
	calls    int
	taskType string
	err      error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.calls++
	e.taskType = taskType
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) ModelName() string {
	return "stub"
}

type stubSearcher struct {
	calls int
	hits  []model.ScoredChunk
	err   error
}

func (s *stubSearcher) HybridSearch(ctx context.Context, text string, vector []float32, topK int) ([]model.ScoredChunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > topK {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

type stubSigner struct {
	calls int
	err   error
}

func (s *stubSigner) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://files.example/%s?sig=%d", name, s.calls), nil
}

func scored(doc string, page int, score float64, content string) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: &model.Chunk{
			ID:        ChunkID(doc, page, 0),
			Document:  doc,
			Page:      page,
			Content:   content,
			SourceRef: doc,
		},
		Score: score,
	}
}
