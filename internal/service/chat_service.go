package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/rag"
)

type ChatRequest struct {
	Question string
	// TopK overrides the configured default when set.
	TopK *int
}

type ChatConfig struct {
	DefaultTopK      int
	MaxQuestionChars int
}

type ChatService struct {
	retriever *rag.Retriever
	gate      *rag.Gate
	composer  *rag.Composer
	citations *rag.CitationBuilder
	cfg       ChatConfig
}

func NewChatService(retriever *rag.Retriever, gate *rag.Gate, composer *rag.Composer, citations *rag.CitationBuilder, cfg ChatConfig) *ChatService {
	return &ChatService{
		retriever: retriever,
		gate:      gate,
		composer:  composer,
		citations: citations,
		cfg:       cfg,
	}
}

// Chat answers one question. An answer with OutOfContext set is a normal
// outcome, errors are reserved for bad input and collaborator failures.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*model.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, appErr.Invalidf("question is required")
	}
	if s.cfg.MaxQuestionChars > 0 && len([]rune(question)) > s.cfg.MaxQuestionChars {
		return nil, appErr.Invalidf("question exceeds %d characters", s.cfg.MaxQuestionChars)
	}
	topK := s.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < rag.MinTopK || topK > rag.MaxTopK {
		return nil, appErr.Invalidf("top_k must be between %d and %d", rag.MinTopK, rag.MaxTopK)
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("top_k", topK))

	result, err := s.retriever.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	decision := s.gate.Check(result)
	logger.Info("grounding decision",
		zap.Bool("passed", decision.Passed),
		zap.Float64("top_score", decision.TopScore),
		zap.Float64("threshold", s.gate.Threshold()),
		zap.Int("retrieved", len(result.Chunks)),
		zap.String("reason", decision.Reason),
	)

	answer, markers, err := s.composer.Compose(ctx, question, decision)
	if err != nil {
		return nil, err
	}
	answer.RetrievedChunks = len(result.Chunks)
	if answer.OutOfContext {
		return answer, nil
	}
	citations, err := s.citations.Build(ctx, markers, decision.Sources)
	if err != nil {
		return nil, err
	}
	answer.Citations = citations
	logger.Info("answer generated", zap.Int("markers", len(markers)), zap.Int("citations", len(citations)))
	return answer, nil
}
