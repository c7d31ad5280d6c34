package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
)

type ChunkerConfig struct {
	Size         int
	Overlap      int
	MinChunkSize int
	// MaxChunkSize is the ceiling for a single chunk, Size+Overlap when 0.
	MaxChunkSize int
	MinPageChars int
}

// Chunker splits page text into overlapping windows of runes. Chunks never
// cross a page boundary.
type Chunker struct {
	cfg ChunkerConfig
}

func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = cfg.Size + cfg.Overlap
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size)")
	}
	if cfg.MaxChunkSize < cfg.Size {
		return nil, fmt.Errorf("max chunk size must not be below chunk size")
	}
	if cfg.MinChunkSize < 0 || cfg.MinChunkSize > cfg.Size {
		return nil, fmt.Errorf("min chunk size must be in [0, size]")
	}
	// the window that ends a page is longer than MaxChunkSize-step, so this
	// keeps every tail at or above MinChunkSize
	if cfg.MaxChunkSize-cfg.Size+cfg.Overlap < cfg.MinChunkSize {
		return nil, fmt.Errorf("max chunk size - size + overlap must be >= min chunk size")
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk returns the chunks of all pages of a document in page order.
// Pages with too little text produce no chunks.
func (c *Chunker) Chunk(ctx context.Context, document string, pages []model.Page) []*model.Chunk {
	out := make([]*model.Chunk, 0, len(pages))
	for _, page := range pages {
		runes := []rune(strings.TrimSpace(page.Text))
		if len(runes) < c.cfg.MinPageChars {
			logutil.GetLogger(ctx).Debug("no extractable text",
				zap.String("document", document), zap.Int("page", page.Number))
			continue
		}
		for seq, span := range c.spans(len(runes)) {
			out = append(out, &model.Chunk{
				ID:        ChunkID(document, page.Number, seq),
				Document:  document,
				Page:      page.Number,
				Seq:       seq,
				Content:   string(runes[span[0]:span[1]]),
				SourceRef: document,
			})
		}
	}
	return out
}

// spans computes [start, end) rune windows over a text of length n. The
// last window takes the whole remainder once it fits under MaxChunkSize.
func (c *Chunker) spans(n int) [][2]int {
	if n == 0 {
		return nil
	}
	step := c.cfg.Size - c.cfg.Overlap
	var spans [][2]int
	start := 0
	for n-start > c.cfg.MaxChunkSize {
		spans = append(spans, [2]int{start, start + c.cfg.Size})
		start += step
	}
	return append(spans, [2]int{start, n})
}

// ChunkID is stable across runs for the same document, page and position.
func ChunkID(document string, page int, seq int) string {
	h := sha256.New()
	h.Write([]byte(document))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(seq)))
	return hex.EncodeToString(h.Sum(nil))
}
