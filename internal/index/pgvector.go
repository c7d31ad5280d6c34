package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/dbutil"
)

const (
	metaDimension  = "dimension"
	metaEmbedModel = "embed_model"
	// candidates fetched from each of the vector and keyword legs per result
	candidateFactor = 4
	minCandidates   = 20
	textSearchConf  = "english"
)

type pgIndex struct {
	db   *sqlx.DB
	opts Options

	chunkTable string
	docTable   string
	metaTable  string
}

func NewPGIndex(db *sql.DB, opts Options) Index {
	return &pgIndex{
		db:         sqlx.NewDb(db, "postgres"),
		opts:       opts,
		chunkTable: opts.Name + "_chunks",
		docTable:   opts.Name + "_documents",
		metaTable:  opts.Name + "_meta",
	}
}

func (p *pgIndex) schemaStatements() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, p.metaTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			page INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			source_ref TEXT NOT NULL,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('%s', content)) STORED,
			embedding VECTOR(%d) NOT NULL
		)`, p.chunkTable, textSearchConf, p.opts.Dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_page_idx ON %s (document, page)`, p.chunkTable, p.chunkTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING GIN (tsv)`, p.chunkTable, p.chunkTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, p.chunkTable, p.chunkTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			pages INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			ingested_at BIGINT NOT NULL
		)`, p.docTable),
	}
}

func (p *pgIndex) EnsureSchema(ctx context.Context) error {
	stored, err := p.readMeta(ctx)
	if err != nil {
		return err
	}
	if v, ok := stored[metaDimension]; ok && v != strconv.Itoa(p.opts.Dimension) {
		return fmt.Errorf("%w: index %s has dimension %s, configured %d", ErrSchemaMismatch, p.opts.Name, v, p.opts.Dimension)
	}
	for _, stmt := range p.schemaStatements() {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	if err := p.writeMeta(ctx, metaDimension, strconv.Itoa(p.opts.Dimension)); err != nil {
		return err
	}
	if err := p.writeMeta(ctx, metaEmbedModel, p.opts.EmbedModel); err != nil {
		return err
	}
	if v, ok := stored[metaEmbedModel]; ok && v != p.opts.EmbedModel {
		logutil.GetLogger(ctx).Warn("index was built with a different embedding model, consider a full reindex",
			zap.String("index", p.opts.Name),
			zap.String("stored_model", v),
			zap.String("configured_model", p.opts.EmbedModel),
		)
	}
	return nil
}

func (p *pgIndex) readMeta(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	rows, err := p.db.QueryxContext(ctx, fmt.Sprintf(`SELECT key, value FROM %s`, p.metaTable))
	if err != nil {
		if dbutil.IsUndefinedTable(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read index meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// writeMeta keeps the first stored value, the dimension must never drift.
func (p *pgIndex) writeMeta(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, p.metaTable)
	if key == metaEmbedModel {
		query = fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, p.metaTable)
	}
	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	return nil
}

func (p *pgIndex) Recreate(ctx context.Context) error {
	for _, table := range []string{p.chunkTable, p.docTable, p.metaTable} {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	logutil.GetLogger(ctx).Info("index dropped", zap.String("index", p.opts.Name))
	return p.EnsureSchema(ctx)
}

func (p *pgIndex) Upsert(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error {
	if err := validateChunks(doc, chunks, p.opts.Dimension); err != nil {
		return err
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sqlStr, args, err := builder.BuildDelete(p.chunkTable, map[string]interface{}{"document": doc.Name})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, document, page, seq, content, source_ref, embedding) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.chunkTable))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Document, c.Page, c.Seq, c.Content, c.SourceRef, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	data := map[string]interface{}{
		"name":        doc.Name,
		"pages":       doc.Pages,
		"chunks":      len(chunks),
		"ingested_at": doc.IngestedAt,
	}
	sqlStr, args, err = builder.BuildInsert(p.docTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr += " ON CONFLICT (name) DO UPDATE SET pages = EXCLUDED.pages, chunks = EXCLUDED.chunks, ingested_at = EXCLUDED.ingested_at"
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return tx.Commit()
}

func (p *pgIndex) DeleteAll(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s, %s`, p.chunkTable, p.docTable))
	return err
}

type ledgerRow struct {
	Name       string `db:"name"`
	Pages      int    `db:"pages"`
	Chunks     int    `db:"chunks"`
	IngestedAt int64  `db:"ingested_at"`
}

func (p *pgIndex) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect(p.docTable, map[string]interface{}{
		"_orderby": "name asc",
	}, []string{"name", "pages", "chunks", "ingested_at"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var rows []ledgerRow
	if err := p.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	out := make([]*model.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, &model.Document{Name: r.Name, Pages: r.Pages, Chunks: r.Chunks, IngestedAt: r.IngestedAt})
	}
	return out, nil
}

func (p *pgIndex) HybridSearch(ctx context.Context, text string, vector []float32, topK int) ([]model.ScoredChunk, error) {
	if len(vector) != p.opts.Dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), p.opts.Dimension)
	}
	vw, tw := p.opts.weights()
	candidates := topK * candidateFactor
	if candidates < minCandidates {
		candidates = minCandidates
	}
	query := fmt.Sprintf(`
		WITH q AS (SELECT websearch_to_tsquery('%[2]s', $2) AS query),
		vec AS (
			SELECT id FROM %[1]s ORDER BY embedding <=> $1 LIMIT $4
		),
		kw AS (
			SELECT c.id, ts_rank_cd(c.tsv, q.query, 32) AS rank
			FROM %[1]s c, q
			WHERE $6::float8 > 0 AND c.tsv @@ q.query
			ORDER BY rank DESC
			LIMIT $4
		),
		cand AS (
			SELECT id FROM vec UNION SELECT id FROM kw
		)
		SELECT c.id, c.document, c.page, c.seq, c.content, c.source_ref,
			$5::float8 * (1 - (c.embedding <=> $1)) + $6::float8 * COALESCE(kw.rank, 0) AS score
		FROM cand
		JOIN %[1]s c ON c.id = cand.id
		LEFT JOIN kw ON kw.id = c.id
		ORDER BY score DESC, c.id ASC
		LIMIT $3`, p.chunkTable, textSearchConf)
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(vector), text, topK, candidates, vw, tw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ScoredChunk, 0, topK)
	for rows.Next() {
		c := &model.Chunk{}
		var score float64
		if err := rows.Scan(&c.ID, &c.Document, &c.Page, &c.Seq, &c.Content, &c.SourceRef, &score); err != nil {
			return nil, err
		}
		out = append(out, model.ScoredChunk{Chunk: c, Score: score})
	}
	return out, rows.Err()
}

// Close leaves the database handle open, it belongs to the caller.
func (p *pgIndex) Close() error {
	return nil
}
