package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/service"
)

type fakeIngester struct {
	calls   int
	summary *model.IngestSummary
	err     error
}

func (f *fakeIngester) Ingest(ctx context.Context, req service.IngestRequest) (*model.IngestSummary, error) {
	f.calls++
	if req.ForceReindex {
		return nil, errors.New("scheduled ingest must be incremental")
	}
	return f.summary, f.err
}

func TestIngestJob(t *testing.T) {
	ctx := context.Background()

	ok := &fakeIngester{summary: &model.IngestSummary{Failures: []model.IngestFailure{{Document: "a.pdf", Reason: "no extractable text"}}}}
	require.NoError(t, NewIngestJob(ok).Run(ctx))
	require.Equal(t, 1, ok.calls)

	busy := &fakeIngester{err: service.ErrIngestRunning}
	require.NoError(t, NewIngestJob(busy).Run(ctx))

	broken := &fakeIngester{err: errors.New("list failed")}
	require.Error(t, NewIngestJob(broken).Run(ctx))

	require.NoError(t, NewIngestJob(nil).Run(ctx))
}

type fakeCleaner struct {
	cutoff int64
}

func (f *fakeCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cleaner := &fakeCleaner{}
	j := NewEmbeddingCacheCleanupJob(cleaner, 0)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), cleaner.cutoff)

	j = NewEmbeddingCacheCleanupJob(cleaner, 2)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-48*time.Hour).Unix(), cleaner.cutoff)
}
