package rag

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const (
	MinTopK = 1
	MaxTopK = 20
)

type Searcher interface {
	HybridSearch(ctx context.Context, text string, vector []float32, topK int) ([]model.ScoredChunk, error)
}

type Retriever struct {
	embedder ai.IEmbedder
	searcher Searcher
}

func NewRetriever(embedder ai.IEmbedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher}
}

// Search embeds the query and runs one hybrid query. The ranking of the
// index is returned unchanged.
func (r *Retriever) Search(ctx context.Context, query string, topK int) (*model.RetrievalResult, error) {
	if topK < MinTopK || topK > MaxTopK {
		return nil, appErr.Invalidf("top_k must be between %d and %d", MinTopK, MaxTopK)
	}
	vec, err := r.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logutil.GetLogger(ctx).Error("embed query failed", zap.Error(err))
		return nil, appErr.NewStageError(appErr.StageEmbedding, err)
	}
	hits, err := r.searcher.HybridSearch(ctx, query, vec, topK)
	if err != nil {
		logutil.GetLogger(ctx).Error("hybrid search failed", zap.Int("top_k", topK), zap.Error(err))
		return nil, appErr.NewStageError(appErr.StageSearch, err)
	}
	return &model.RetrievalResult{Query: query, Chunks: hits}, nil
}
