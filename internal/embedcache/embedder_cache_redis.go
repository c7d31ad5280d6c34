package embedcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
)

// WrapRedisCacheToEmbedder shares embeddings between processes. Vectors
// are stored as little endian float32 arrays.
func WrapRedisCacheToEmbedder(e ai.IEmbedder, client redis.UniversalClient, ttl time.Duration) ai.IEmbedder {
	if e == nil || client == nil {
		return e
	}
	return &redisEmbedder{next: e, client: client, ttl: ttl}
}

type redisEmbedder struct {
	next   ai.IEmbedder
	client redis.UniversalClient
	ttl    time.Duration
}

func (r *redisEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := buildCacheKey(r.next.ModelName(), taskType, text)
	raw, err := r.client.Get(ctx, key.full).Bytes()
	switch {
	case err == nil:
		if values, derr := decodeVector(raw); derr == nil {
			logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("layer", "redis"), zap.String("task_type", taskType))
			return values, nil
		}
	case !errors.Is(err, redis.Nil):
		logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.String("layer", "redis"), zap.Error(err))
	}
	res, err := r.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, key.full, encodeVector(res), r.ttl).Err(); err != nil {
		logutil.GetLogger(ctx).Warn("write embedding cache failed", zap.String("layer", "redis"), zap.Error(err))
	}
	return res, nil
}

func (r *redisEmbedder) ModelName() string {
	return r.next.ModelName()
}

func encodeVector(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
