package searchindex

import "time"

/*
Responsibilities

- Define the search index's row shapes exactly as SPEC_FULL's external
  interfaces section: a documents table and a sibling chunk-documents
  table, each carrying its own embedding column
- Stay storage-agnostic at the type level so internal/searchindex/pgvector
  and internal/searchindex/fakeindex can share the same Document/
  ChunkRecord shapes in tests
*/

// Document is one row of the documents table: the whole-page record a
// search result links back to.
type Document struct {
	URLHash         string
	URL             string
	Domain          string
	Site            string
	Lang            string
	Title           string
	Body            string
	FetchedAt       time.Time
	PopularityScore float64
	// Embedding is nil when the indexer runs with enable_embeddings=false
	// (Open Question #4) - never a zero vector, which would rank as
	// spuriously similar to every other unembedded document.
	Embedding []float32
}

// ChunkRecord is one row of the chunk-documents table, keyed by
// (URLHash, ChunkIdx).
type ChunkRecord struct {
	URLHash   string
	ChunkIdx  int
	Text      string
	Embedding []float32
}
