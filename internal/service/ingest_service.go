package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/filestore"
	"github.com/xxxsen/pdfqa/internal/index"
	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pdftext"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/rag"
)

var ErrIngestRunning = fmt.Errorf("%w: ingest already running", appErr.ErrConflict)

var errNoText = errors.New("no extractable text")

// Extractor turns raw document bytes into pages.
type Extractor func(data []byte) ([]model.Page, error)

type IngestRequest struct {
	// ForceReindex clears the index first, otherwise documents already in
	// the ledger are skipped.
	ForceReindex bool
}

type IngestConfig struct {
	Suffix      string
	Concurrency int
	// MinPageChars is the least text a document needs on some page to be
	// indexed.
	MinPageChars int
}

type IngestService struct {
	store     filestore.Store
	extract   Extractor
	chunker   *rag.Chunker
	embedder  ai.IEmbedder
	index     index.Index
	cfg       IngestConfig
	running   atomic.Bool
	nowUnix   func() int64
	lastMu    sync.Mutex
	lastRunAt int64
}

func NewIngestService(store filestore.Store, chunker *rag.Chunker, embedder ai.IEmbedder, idx index.Index, cfg IngestConfig) *IngestService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &IngestService{
		store:    store,
		extract:  pdftext.Extract,
		chunker:  chunker,
		embedder: embedder,
		index:    idx,
		cfg:      cfg,
		nowUnix:  func() int64 { return time.Now().Unix() },
	}
}

// WithExtractor replaces the pdf extractor.
func (s *IngestService) WithExtractor(fn Extractor) *IngestService {
	s.extract = fn
	return s
}

func (s *IngestService) Running() bool {
	return s.running.Load()
}

// LastRunAt is the unix time the last run finished, 0 before the first run.
func (s *IngestService) LastRunAt() int64 {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRunAt
}

// Ingest indexes every document of the store. A failing document is
// reported in the summary and leaves the rest of the run untouched; it is
// either fully indexed or absent.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*model.IngestSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrIngestRunning
	}
	defer s.running.Store(false)
	logger := logutil.GetLogger(ctx).With(zap.Bool("force_reindex", req.ForceReindex))
	start := time.Now()

	names, err := s.store.List(ctx, s.cfg.Suffix)
	if err != nil {
		logger.Error("list documents failed", zap.Error(err))
		return nil, appErr.NewStageError(appErr.StageStorage, err)
	}
	existing := map[string]bool{}
	if req.ForceReindex {
		if err := s.index.DeleteAll(ctx); err != nil {
			logger.Error("clear index failed", zap.Error(err))
			return nil, appErr.NewStageError(appErr.StageSearch, err)
		}
	} else {
		docs, err := s.index.ListDocuments(ctx)
		if err != nil {
			logger.Error("list indexed documents failed", zap.Error(err))
			return nil, appErr.NewStageError(appErr.StageSearch, err)
		}
		for _, d := range docs {
			existing[d.Name] = true
		}
	}

	summary := &model.IngestSummary{Failures: []model.IngestFailure{}}
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, name := range names {
		if existing[name] {
			summary.Skipped++
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := s.ingestDocument(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("ingest document failed", zap.String("document", name), zap.Error(err))
				summary.Failures = append(summary.Failures, model.IngestFailure{Document: name, Reason: err.Error()})
				return nil
			}
			summary.DocumentsProcessed++
			summary.ChunksIndexed += n
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Document < summary.Failures[j].Document
	})
	s.lastMu.Lock()
	s.lastRunAt = s.nowUnix()
	s.lastMu.Unlock()

	logger.Info("ingest finished",
		zap.Int("documents", summary.DocumentsProcessed),
		zap.Int("chunks", summary.ChunksIndexed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failures", len(summary.Failures)),
		zap.Duration("cost", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *IngestService) ingestDocument(ctx context.Context, name string) (int, error) {
	data, err := s.store.Read(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("read: %w", appErr.NewStageError(appErr.StageStorage, err))
	}
	pages, err := s.extract(data)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if !pdftext.HasText(pages, s.cfg.MinPageChars) {
		return 0, errNoText
	}
	chunks := s.chunker.Chunk(ctx, name, pages)
	if len(chunks) == 0 {
		return 0, errNoText
	}
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Content, ai.TaskRetrievalDocument)
		if err != nil {
			return 0, fmt.Errorf("embed page %d: %w", c.Page, appErr.NewStageError(appErr.StageEmbedding, err))
		}
		c.Embedding = vec
	}
	doc := &model.Document{
		Name:       name,
		Pages:      len(pages),
		Chunks:     len(chunks),
		IngestedAt: s.nowUnix(),
	}
	if err := s.index.Upsert(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("index: %w", appErr.NewStageError(appErr.StageSearch, err))
	}
	logutil.GetLogger(ctx).Debug("document indexed", zap.String("document", name), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
