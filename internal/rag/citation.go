package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const (
	defaultURLTTL       = 15 * time.Minute
	defaultSnippetChars = 200
)

type URLSigner interface {
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

type CitationBuilder struct {
	signer       URLSigner
	ttl          time.Duration
	snippetChars int
}

func NewCitationBuilder(signer URLSigner, ttl time.Duration, snippetChars int) *CitationBuilder {
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	if snippetChars <= 0 {
		snippetChars = defaultSnippetChars
	}
	return &CitationBuilder{signer: signer, ttl: ttl, snippetChars: snippetChars}
}

type pageKey struct {
	document string
	page     int
}

// Build resolves markers to citations, one per (document, page) in the
// order the markers first appear. Markers without a source are skipped.
func (b *CitationBuilder) Build(ctx context.Context, markers []int, sources []model.ScoredChunk) ([]model.Citation, error) {
	out := make([]model.Citation, 0, len(markers))
	seen := make(map[pageKey]bool, len(markers))
	for _, m := range markers {
		if m < 1 || m > len(sources) || sources[m-1].Chunk == nil {
			logutil.GetLogger(ctx).Warn("drop citation for unknown source marker",
				zap.Int("marker", m), zap.Int("sources", len(sources)))
			continue
		}
		chunk := sources[m-1].Chunk
		key := pageKey{document: chunk.Document, page: chunk.Page}
		if seen[key] {
			continue
		}
		seen[key] = true
		ref := chunk.SourceRef
		if ref == "" {
			ref = chunk.Document
		}
		url, err := b.signer.SignedURL(ctx, ref, b.ttl)
		if err != nil {
			logutil.GetLogger(ctx).Error("sign citation url failed", zap.String("document", chunk.Document), zap.Error(err))
			return nil, appErr.NewStageError(appErr.StageStorage, err)
		}
		out = append(out, model.Citation{
			Document: chunk.Document,
			Page:     chunk.Page,
			URL:      PageAnchor(url, chunk.Page),
			Snippet:  Truncate(chunk.Content, b.snippetChars),
		})
	}
	return out, nil
}

// PageAnchor appends the pdf open parameters that jump to a page.
func PageAnchor(url string, page int) string {
	if page <= 0 {
		return url
	}
	return fmt.Sprintf("%s#page=%d&view=FitH,top", url, page)
}
