package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/model"
)

func TestIngestIncrementalAndForce(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	store := newMemStore(corpus)
	emb := &keywordEmbedder{}
	svc := NewIngestService(store, newTestChunker(t), emb, idx, IngestConfig{Suffix: ".pdf", Concurrency: 3, MinPageChars: 10}).
		WithExtractor(formFeedPages)

	sum, err := svc.Ingest(ctx, IngestRequest{})
	require.NoError(t, err)
	require.Equal(t, 3, emb.Calls())
	require.Equal(t, 2, sum.DocumentsProcessed)
	require.Equal(t, 3, sum.ChunksIndexed)
	require.Zero(t, sum.Skipped)
	require.Len(t, sum.Failures, 1)
	require.Equal(t, "scan.pdf", sum.Failures[0].Document)
	require.Equal(t, "no extractable text", sum.Failures[0].Reason)
	require.NotZero(t, svc.LastRunAt())

	sum, err = svc.Ingest(ctx, IngestRequest{})
	require.NoError(t, err)
	require.Zero(t, sum.DocumentsProcessed)
	require.Equal(t, 2, sum.Skipped)
	require.Len(t, sum.Failures, 1)
	require.Equal(t, 1, store.reads["manual.pdf"])

	sum, err = svc.Ingest(ctx, IngestRequest{ForceReindex: true})
	require.NoError(t, err)
	require.Equal(t, 2, sum.DocumentsProcessed)
	require.Zero(t, sum.Skipped)
	require.Equal(t, 2, store.reads["manual.pdf"])

	docs, err := idx.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "care.pdf", docs[0].Name)
	require.Equal(t, "manual.pdf", docs[1].Name)
	require.Equal(t, 2, docs[1].Pages)
	require.Equal(t, 2, docs[1].Chunks)
}

func TestIngestFailureIsPerDocument(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := &keywordEmbedder{fail: func(text string) error {
		if strings.Contains(text, "filter") {
			return errors.New("rate limited")
		}
		return nil
	}}
	svc := NewIngestService(newMemStore(corpus), newTestChunker(t), emb, idx, IngestConfig{Suffix: ".pdf", Concurrency: 1, MinPageChars: 10}).
		WithExtractor(formFeedPages)
	sum, err := svc.Ingest(ctx, IngestRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.DocumentsProcessed)
	require.Len(t, sum.Failures, 2)
	require.Equal(t, "care.pdf", sum.Failures[0].Document)
	require.Contains(t, sum.Failures[0].Reason, "rate limited")

	docs, err := idx.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "manual.pdf", docs[0].Name)
}

func TestIngestSingleFlight(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewIngestService(newMemStore(corpus), newTestChunker(t), emb, newTestIndex(t), IngestConfig{Suffix: ".pdf", Concurrency: 1, MinPageChars: 10}).
		WithExtractor(formFeedPages)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(ctx, IngestRequest{})
		done <- err
	}()
	<-emb.entered
	require.True(t, svc.Running())
	_, err := svc.Ingest(ctx, IngestRequest{})
	require.ErrorIs(t, err, ErrIngestRunning)

	close(emb.block)
	require.NoError(t, <-done)
	require.False(t, svc.Running())
}

func TestIngestShortPagesHaveNoText(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	store := newMemStore(map[string]string{"stub.pdf": "page 1\f\n 2 \n"})
	svc := NewIngestService(store, newTestChunker(t), emb, newTestIndex(t), IngestConfig{Suffix: ".pdf", Concurrency: 1, MinPageChars: 10}).
		WithExtractor(formFeedPages)
	sum, err := svc.Ingest(ctx, IngestRequest{})
	require.NoError(t, err)
	require.Zero(t, sum.DocumentsProcessed)
	require.Equal(t, []model.IngestFailure{{Document: "stub.pdf", Reason: "no extractable text"}}, sum.Failures)
	require.Zero(t, emb.Calls())
}
