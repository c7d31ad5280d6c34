package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xxxsen/pdfqa/internal/model"
)

// ErrSchemaMismatch means the stored index was built with a different
// embedding dimension. It has to be recreated explicitly.
var ErrSchemaMismatch = errors.New("index schema mismatch")

type Index interface {
	EnsureSchema(ctx context.Context) error
	// Recreate drops every table of the index and creates it again empty.
	Recreate(ctx context.Context) error
	// Upsert replaces all chunks of doc and records doc in the ledger in a
	// single transaction.
	Upsert(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error
	DeleteAll(ctx context.Context) error
	ListDocuments(ctx context.Context) ([]*model.Document, error)
	// HybridSearch ranks chunks by score descending then id ascending.
	HybridSearch(ctx context.Context, text string, vector []float32, topK int) ([]model.ScoredChunk, error)
	Close() error
}

type Options struct {
	Name         string
	Dimension    int
	EmbedModel   string
	Hybrid       bool
	VectorWeight float64
	TextWeight   float64
}

func (o Options) weights() (float64, float64) {
	if !o.Hybrid {
		return 1, 0
	}
	return o.VectorWeight, o.TextWeight
}

// New builds the index named by typ. db is only used by "pgvector".
func New(typ string, db *sql.DB, opts Options) (Index, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive")
	}
	switch typ {
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector index requires a database")
		}
		return NewPGIndex(db, opts), nil
	case "memory":
		return NewMemoryIndex(opts), nil
	default:
		return nil, fmt.Errorf("unsupported index type: %s", typ)
	}
}

func validateChunks(doc *model.Document, chunks []*model.Chunk, dim int) error {
	for _, c := range chunks {
		if c.Document != doc.Name {
			return fmt.Errorf("chunk %s belongs to %s, not %s", c.ID, c.Document, doc.Name)
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s embedding has %d dimensions, index expects %d", c.ID, len(c.Embedding), dim)
		}
	}
	return nil
}
