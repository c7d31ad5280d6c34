package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/xxxsen/pdfqa/internal/model"
)

// memoryIndex keeps everything in process. Scores follow the pgvector
// index: cosine similarity blended with a keyword rank squashed to [0, 1).
type memoryIndex struct {
	opts Options

	mu     sync.RWMutex
	chunks map[string][]*model.Chunk
	docs   map[string]*model.Document
}

func NewMemoryIndex(opts Options) Index {
	return &memoryIndex{
		opts:   opts,
		chunks: make(map[string][]*model.Chunk),
		docs:   make(map[string]*model.Document),
	}
}

func (m *memoryIndex) EnsureSchema(ctx context.Context) error {
	return nil
}

func (m *memoryIndex) Recreate(ctx context.Context) error {
	return m.DeleteAll(ctx)
}

func (m *memoryIndex) Upsert(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error {
	if err := validateChunks(doc, chunks, m.opts.Dimension); err != nil {
		return err
	}
	copied := make([]*model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		cc := *c
		copied = append(copied, &cc)
	}
	d := *doc
	d.Chunks = len(chunks)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[doc.Name] = copied
	m.docs[doc.Name] = &d
	return nil
}

func (m *memoryIndex) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string][]*model.Chunk)
	m.docs = make(map[string]*model.Document)
	return nil
}

func (m *memoryIndex) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Document, 0, len(m.docs))
	for _, d := range m.docs {
		dd := *d
		out = append(out, &dd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryIndex) HybridSearch(ctx context.Context, text string, vector []float32, topK int) ([]model.ScoredChunk, error) {
	if len(vector) != m.opts.Dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), m.opts.Dimension)
	}
	vw, tw := m.opts.weights()
	terms := tokenize(text)
	m.mu.RLock()
	var out []model.ScoredChunk
	for _, chunks := range m.chunks {
		for _, c := range chunks {
			score := vw * cosine(vector, c.Embedding)
			if tw > 0 && len(terms) > 0 {
				score += tw * keywordRank(terms, c.Content)
			}
			cc := *c
			cc.Embedding = nil
			out = append(out, model.ScoredChunk{Chunk: &cc, Score: score})
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memoryIndex) Close() error {
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) > 1 {
			out[f] = true
		}
	}
	return out
}

func keywordRank(terms map[string]bool, content string) float64 {
	words := tokenize(content)
	hits := 0
	for t := range terms {
		if words[t] {
			hits++
		}
	}
	r := float64(hits)
	return r / (r + 1)
}
