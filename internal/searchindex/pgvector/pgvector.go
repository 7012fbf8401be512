package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/rohmanhakim/crawlcore/internal/searchindex"
)

/*
Responsibilities

- Bulk-ingest documents and their chunks into Postgres+pgvector, the
  production searchindex.Index
- Enforce the one schema invariant SPEC_FULL calls out explicitly: the
  embedding column's vector width is a property of whichever model wrote
  the index first, and a later run with a different model must abort
  rather than silently writing mixed-dimension vectors (§6/P7)

Table layout matches SPEC_FULL's external interfaces section exactly:
documents keyed by url_hash, document_chunks keyed by (url_hash, chunk_idx).
*/

// Store is the pgvector-backed searchindex.Index.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pgxpool.Pool. Callers own the pool's
// lifecycle (Close), matching how the teacher's adapters take an
// already-configured client rather than owning connection setup.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.pool.QueryRow(ctx,
		`SELECT vector_dims(embedding) FROM documents WHERE embedding IS NOT NULL LIMIT 1`,
	).Scan(&dim)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &searchindex.IndexError{Message: err.Error(), Retryable: true, Cause: searchindex.ErrCauseWriteFailure}
	}
	return dim, nil
}

func (s *Store) EnsureSchema(ctx context.Context, dimension int) error {
	existing, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	if existing != 0 && existing != dimension {
		return &searchindex.IndexError{
			Message:   fmt.Sprintf("index was built with dimension %d, configured model produces %d", existing, dimension),
			Retryable: false,
			Cause:     searchindex.ErrCauseDimensionMismatch,
		}
	}

	if existing != 0 {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			url_hash TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			domain TEXT NOT NULL,
			site TEXT,
			lang TEXT,
			title TEXT,
			body TEXT,
			fetched_at TIMESTAMPTZ,
			popularity_score DOUBLE PRECISION,
			embedding VECTOR(%d)
		)`, dimension),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			url_hash TEXT NOT NULL REFERENCES documents(url_hash) ON DELETE CASCADE,
			chunk_idx INT NOT NULL,
			chunk_text TEXT,
			embedding VECTOR(%d),
			PRIMARY KEY (url_hash, chunk_idx)
		)`, dimension),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &searchindex.IndexError{Message: err.Error(), Retryable: true, Cause: searchindex.ErrCauseWriteFailure}
		}
	}
	return nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc searchindex.Document) error {
	var embedding any
	if doc.Embedding != nil {
		embedding = pgv.NewVector(doc.Embedding)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (url_hash, url, domain, site, lang, title, body, fetched_at, popularity_score, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url_hash) DO UPDATE SET
			url = EXCLUDED.url,
			domain = EXCLUDED.domain,
			site = EXCLUDED.site,
			lang = EXCLUDED.lang,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			fetched_at = EXCLUDED.fetched_at,
			popularity_score = EXCLUDED.popularity_score,
			embedding = EXCLUDED.embedding
	`, doc.URLHash, doc.URL, doc.Domain, doc.Site, doc.Lang, doc.Title, doc.Body, doc.FetchedAt, doc.PopularityScore, embedding)
	if err != nil {
		return &searchindex.IndexError{Message: err.Error(), Retryable: true, Cause: searchindex.ErrCauseWriteFailure}
	}
	return nil
}

func (s *Store) UpsertChunks(ctx context.Context, chunks []searchindex.ChunkRecord) []error {
	errs := make([]error, len(chunks))

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(chunkUpsertSQL, chunkUpsertArgs(c)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			errs[i] = err
		}
	}
	_ = br.Close()

	// Per-record retry on partial batch failure, per SPEC_FULL §4.F.4.
	for i, err := range errs {
		if err == nil {
			continue
		}
		if _, retryErr := s.pool.Exec(ctx, chunkUpsertSQL, chunkUpsertArgs(chunks[i])...); retryErr != nil {
			errs[i] = &searchindex.IndexError{Message: retryErr.Error(), Retryable: true, Cause: searchindex.ErrCauseWriteFailure}
		} else {
			errs[i] = nil
		}
	}
	return errs
}

const chunkUpsertSQL = `
	INSERT INTO document_chunks (url_hash, chunk_idx, chunk_text, embedding)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (url_hash, chunk_idx) DO UPDATE SET
		chunk_text = EXCLUDED.chunk_text,
		embedding = EXCLUDED.embedding
`

func chunkUpsertArgs(c searchindex.ChunkRecord) []any {
	var embedding any
	if c.Embedding != nil {
		embedding = pgv.NewVector(c.Embedding)
	}
	return []any{c.URLHash, c.ChunkIdx, c.Text, embedding}
}
