package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const OutOfContextMessage = "Your question is outside the provided documents. " +
	"I can't answer it from the PDFs I have. " +
	"Please ask a question related to the content in the uploaded documents."

const systemPromptTemplate = `You are a helpful assistant that answers questions based ONLY on the provided source documents.

RULES:
1. Answer ONLY using information from the sources below.
2. If the sources do not contain the answer, say "I don't have enough information in the provided documents to answer this question."
3. Cite every statement with the marker of the source it comes from, for example [source 1] or [source 2].
4. Only use markers of sources listed below.
5. Be concise and accurate. Do not use knowledge outside the sources.

SOURCES:
%s

Answer the user's question based solely on the sources above.`

var (
	markerGroupRe = regexp.MustCompile(`(?i)\[\s*sources?\s+(\d+(?:\s*(?:,|and|&)\s*\d+)*)\s*\]`)
	digitsRe      = regexp.MustCompile(`\d+`)
)

type Composer struct {
	generator ai.IGenerator
}

func NewComposer(generator ai.IGenerator) *Composer {
	return &Composer{generator: generator}
}

// Compose turns a gate decision into an answer. It returns the source
// markers referenced by the generated text in first-occurrence order.
// A failed gate never reaches the generator.
func (c *Composer) Compose(ctx context.Context, question string, decision model.GroundingDecision) (*model.Answer, []int, error) {
	if !decision.Passed {
		return &model.Answer{
			Text:         OutOfContextMessage,
			Citations:    []model.Citation{},
			OutOfContext: true,
		}, nil, nil
	}
	system := BuildSystemPrompt(decision.Sources)
	text, err := c.generator.Complete(ctx, system, question)
	if err != nil {
		logutil.GetLogger(ctx).Error("generate answer failed", zap.Int("sources", len(decision.Sources)), zap.Error(err))
		return nil, nil, appErr.NewStageError(appErr.StageGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, appErr.NewStageError(appErr.StageGeneration, fmt.Errorf("empty completion"))
	}
	return &model.Answer{Text: text}, ParseMarkers(text), nil
}

// BuildSystemPrompt tags each source with its 1-based rank.
func BuildSystemPrompt(sources []model.ScoredChunk) string {
	parts := make([]string, 0, len(sources))
	for i, src := range sources {
		parts = append(parts, fmt.Sprintf("[source %d]\nDocument: %s\nPage: %d\nContent: %s\n",
			i+1, src.Chunk.Document, src.Chunk.Page, src.Chunk.Content))
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(parts, "\n---\n"))
}

// ParseMarkers extracts source numbers from "[source 2]", "[Source 1, 3]"
// and "[sources 1 and 2]" forms. Duplicates are dropped.
func ParseMarkers(text string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, group := range markerGroupRe.FindAllStringSubmatch(text, -1) {
		for _, d := range digitsRe.FindAllString(group[1], -1) {
			n, err := strconv.Atoi(d)
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
