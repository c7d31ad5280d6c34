package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/ai"
	"github.com/xxxsen/pdfqa/internal/index"
	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/rag"
)

var keywords = []string{"warranty", "filter", "battery"}

// One axis per keyword, then a document fallback axis and a query
// fallback axis so texts without keywords never match each other.
const testDim = 5

// keywordEmbedder maps text onto keyword axes, so related texts land close
// together.
type keywordEmbedder struct {
	mu      sync.Mutex
	calls   int
	fail    func(text string) error
	block   chan struct{}
	entered chan struct{}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()
	if e.entered != nil {
		select {
		case e.entered <- struct{}{}:
		default:
		}
	}
	if e.block != nil {
		<-e.block
	}
	if fail != nil {
		if err := fail(text); err != nil {
			return nil, err
		}
	}
	vec := make([]float32, testDim)
	lower := strings.ToLower(text)
	matched := false
	for i, kw := range keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
			matched = true
		}
	}
	if !matched {
		if taskType == ai.TaskRetrievalQuery {
			vec[testDim-1] = 1
		} else {
			vec[testDim-2] = 1
		}
	}
	return vec, nil
}

func (e *keywordEmbedder) ModelName() string {
	return "keyword"
}

func (e *keywordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type scriptedGenerator struct {
	calls int
	out   string
	err   error
}

func (g *scriptedGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	g.calls++
	return g.out, g.err
}

// memStore holds documents whose pages are separated by form feeds.
type memStore struct {
	mu    sync.Mutex
	files map[string]string
	reads map[string]int
}

func newMemStore(files map[string]string) *memStore {
	return &memStore{files: files, reads: map[string]int{}}
}

func (m *memStore) Type() string {
	return "mem"
}

func (m *memStore) List(ctx context.Context, suffix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.files {
		if strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := m.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[name]++
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("no such object %s", name)
	}
	return []byte(data), nil
}

func (m *memStore) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	return "https://files.example/" + name + "?sig=x", nil
}

func formFeedPages(data []byte) ([]model.Page, error) {
	parts := strings.Split(string(data), "\f")
	pages := make([]model.Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, model.Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

func newTestIndex(t *testing.T) index.Index {
	t.Helper()
	idx, err := index.New("memory", nil, index.Options{
		Name: "test", Dimension: testDim, Hybrid: true, VectorWeight: 0.7, TextWeight: 0.3,
	})
	require.NoError(t, err)
	return idx
}

func newTestChunker(t *testing.T) *rag.Chunker {
	t.Helper()
	c, err := rag.NewChunker(rag.ChunkerConfig{Size: 1000, Overlap: 150, MinChunkSize: 50, MinPageChars: 10})
	require.NoError(t, err)
	return c
}

var corpus = map[string]string{
	"manual.pdf": "Safety notes and general handling of the device.\fThe warranty period is two years from the date of purchase.",
	"care.pdf":   "Rinse the filter under warm water once a month.",
	"scan.pdf":   "  \f ",
	"readme.txt": "not a pdf",
}
