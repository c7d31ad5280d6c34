package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/config"
	"github.com/xxxsen/pdfqa/internal/db"
	"github.com/xxxsen/pdfqa/internal/embedcache"
	"github.com/xxxsen/pdfqa/internal/filestore"
	"github.com/xxxsen/pdfqa/internal/index"
	"github.com/xxxsen/pdfqa/internal/rag"
	"github.com/xxxsen/pdfqa/internal/repo"
	"github.com/xxxsen/pdfqa/internal/service"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	redis      redis.UniversalClient
	store      filestore.Store
	index      index.Index
	cacheRepo  *repo.EmbeddingCacheRepo
	embedder   ai.IEmbedder
	chat       *service.ChatService
	ingest     *service.IngestService
	closeFuncs []func() error
}

func (a *app) Close() {
	for i := len(a.closeFuncs) - 1; i >= 0; i-- {
		if err := a.closeFuncs[i](); err != nil {
			logutil.GetLogger(context.Background()).Warn("close resource failed", zap.Error(err))
		}
	}
}

func providerSpecs(items []config.ProviderConfig) []ai.ProviderSpec {
	out := make([]ai.ProviderSpec, 0, len(items))
	for _, item := range items {
		out = append(out, ai.ProviderSpec{Provider: item.Provider, Model: item.Model, Data: item.Data})
	}
	return out
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()
	logger := logutil.GetLogger(ctx)

	if cfg.Database.Configured() {
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = conn
		a.closeFuncs = append(a.closeFuncs, conn.Close)
		if err := db.ApplyMigrations(ctx, conn); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.store = store

	generator, err := ai.BuildGenerator(providerSpecs(cfg.AI.Generate))
	if err != nil {
		return nil, err
	}
	embedder, err := ai.BuildEmbedder(providerSpecs(cfg.AI.Embed))
	if err != nil {
		return nil, err
	}
	manager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Retry: ai.RetryPolicy{
			MaxAttempts:     cfg.AI.Retry.MaxAttempts,
			InitialInterval: time.Duration(cfg.AI.Retry.InitialIntervalMs) * time.Millisecond,
			MaxInterval:     time.Duration(cfg.AI.Retry.MaxIntervalMs) * time.Millisecond,
			AttemptTimeout:  time.Duration(cfg.AI.Timeout) * time.Second,
		},
		RequestsPerSecond: cfg.AI.RateLimit.RequestsPerSecond,
		Burst:             cfg.AI.RateLimit.Burst,
		Dimension:         cfg.Index.Dimension,
	})
	if err := manager.VerifyDimension(ctx); err != nil {
		return nil, fmt.Errorf("check embedding model %s against index.dimension %d: %w", manager.ModelName(), cfg.Index.Dimension, err)
	}
	logger.Info("embedding dimension verified", zap.String("model", manager.ModelName()), zap.Int("dimension", cfg.Index.Dimension))

	a.embedder = ai.WrapDimensionGuard(a.wrapCaches(manager), cfg.Index.Dimension)

	idx, err := index.New(cfg.Index.Type, a.db, index.Options{
		Name:         cfg.Index.Name,
		Dimension:    cfg.Index.Dimension,
		EmbedModel:   manager.ModelName(),
		Hybrid:       cfg.Index.HybridEnabled(),
		VectorWeight: cfg.Index.VectorWeight,
		TextWeight:   cfg.Index.TextWeight,
	})
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	a.index = idx
	a.closeFuncs = append(a.closeFuncs, idx.Close)
	if err := idx.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure index schema: %w", err)
	}

	chunker, err := rag.NewChunker(rag.ChunkerConfig{
		Size:         cfg.Chunk.Size,
		Overlap:      cfg.Chunk.OverlapChars(),
		MinChunkSize: cfg.Chunk.MinChunkChars(),
		MaxChunkSize: cfg.Chunk.MaxChunkSize,
		MinPageChars: cfg.Chunk.MinPageChars,
	})
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}
	gate, err := rag.NewGate(cfg.RAG.Threshold())
	if err != nil {
		return nil, fmt.Errorf("init gate: %w", err)
	}
	a.chat = service.NewChatService(
		rag.NewRetriever(a.embedder, idx),
		gate,
		rag.NewComposer(manager),
		rag.NewCitationBuilder(store, time.Duration(cfg.RAG.URLTTLMinutes)*time.Minute, cfg.RAG.SnippetChars),
		service.ChatConfig{DefaultTopK: cfg.RAG.TopK, MaxQuestionChars: cfg.RAG.MaxQuestionChars},
	)
	a.ingest = service.NewIngestService(store, chunker, a.embedder, idx, service.IngestConfig{
		Suffix:       cfg.Ingest.Suffix,
		Concurrency:  cfg.Ingest.Concurrency,
		MinPageChars: cfg.Chunk.MinPageChars,
	})
	ok = true
	return a, nil
}

// wrapCaches stacks the embedding caches, fastest outermost:
// lru(redis(db(manager))). Cached vectors skip the manager checks, the
// caller guards the result.
func (a *app) wrapCaches(e ai.IEmbedder) ai.IEmbedder {
	cfg := a.cfg.EmbedCache
	if cfg.DB && a.db != nil {
		a.cacheRepo = repo.NewEmbeddingCacheRepo(a.db)
		e = embedcache.WrapDBCacheToEmbedder(e, a.cacheRepo)
	}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closeFuncs = append(a.closeFuncs, a.redis.Close)
		e = embedcache.WrapRedisCacheToEmbedder(e, a.redis, time.Duration(cfg.RedisTTLHours)*time.Hour)
	}
	return embedcache.WrapLruCacheToEmbedder(e, cfg.LRUSize, time.Duration(cfg.LRUTTLSeconds)*time.Second)
}
