package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test:model"
}

type memRepo struct {
	items  map[string]*model.EmbeddingCache
	getErr error
	saves  int
}

func (m *memRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	item, ok := m.items[modelName+taskType+contentHash]
	if !ok {
		return nil, false, nil
	}
	return item.Embedding, true, nil
}

func (m *memRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.saves++
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item
	return nil
}

func TestLRUCacheScopesByTaskType(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 16, time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := e.Embed(ctx, "hello", "RETRIEVAL_QUERY")
		require.NoError(t, err)
		require.Equal(t, []float32{5, 1}, v)
	}
	require.Equal(t, 1, next.calls)
	_, err := e.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
	require.Equal(t, "test:model", e.ModelName())
}

func TestLRUCacheDoesNotStoreErrors(t *testing.T) {
	next := &countingEmbedder{err: errors.New("down")}
	e := WrapLruCacheToEmbedder(next, 16, time.Minute)
	_, err := e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "x", "")
	require.Error(t, err)
	require.Equal(t, 2, next.calls)
}

func TestDisabledWrappersPassThrough(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
	require.Same(t, next, WrapDBCacheToEmbedder(next, nil))
	require.Same(t, next, WrapRedisCacheToEmbedder(next, nil, time.Minute))
}

func TestDBCache(t *testing.T) {
	next := &countingEmbedder{}
	repo := &memRepo{items: map[string]*model.EmbeddingCache{}}
	e := WrapDBCacheToEmbedder(next, repo)
	ctx := context.Background()
	_, err := e.Embed(ctx, "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	v, err := e.Embed(ctx, "abc", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1}, v)
	require.Equal(t, 1, next.calls)
	require.Equal(t, 1, repo.saves)
}

func TestDBCacheReadFailureFallsThrough(t *testing.T) {
	next := &countingEmbedder{}
	repo := &memRepo{items: map[string]*model.EmbeddingCache{}, getErr: errors.New("db down")}
	v, err := WrapDBCacheToEmbedder(next, repo).Embed(context.Background(), "abc", "")
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1}, v)
	require.Equal(t, 1, next.calls)
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
	_, err = decodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	a := buildCacheKey("m", "Q", "text")
	b := buildCacheKey("m", "D", "text")
	require.Equal(t, a.contentHash, b.contentHash)
	require.NotEqual(t, a.full, b.full)
	require.Equal(t, "unknown", buildCacheKey(" ", "Q", "t").modelName)
}

func TestDimensionGuardRejectsStaleCachedVector(t *testing.T) {
	ctx := context.Background()
	key := buildCacheKey("test:model", ai.TaskRetrievalQuery, "hello")
	repo := &memRepo{items: map[string]*model.EmbeddingCache{
		key.modelName + ai.TaskRetrievalQuery + key.contentHash: {
			ModelName:   key.modelName,
			TaskType:    ai.TaskRetrievalQuery,
			ContentHash: key.contentHash,
			Embedding:   []float32{0.1, 0.2, 0.3},
		},
	}}
	next := &countingEmbedder{}
	e := ai.WrapDimensionGuard(WrapLruCacheToEmbedder(WrapDBCacheToEmbedder(next, repo), 16, time.Minute), 2)

	_, err := e.Embed(ctx, "hello", ai.TaskRetrievalQuery)
	require.ErrorIs(t, err, ai.ErrDimensionMismatch)
	require.Zero(t, next.calls)

	v, err := e.Embed(ctx, "fresh", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, v, 2)
	require.Equal(t, "test:model", e.ModelName())
}
