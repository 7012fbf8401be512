package searchindex

import "context"

/*
Index is the port internal/indexer depends on for bulk ingest. Two
implementations exist: internal/searchindex/pgvector (Postgres+pgvector,
production) and internal/searchindex/fakeindex (in-memory, tests) - see
DESIGN.md for why the test double is a real Go implementation of this
interface rather than a mocked SQL driver.
*/
type Index interface {
	// Dimension reports the vector width the live embedding columns were
	// created with, or 0 if the index has no rows yet.
	Dimension(ctx context.Context) (int, error)

	// EnsureSchema asserts dimension against the live embedding column
	// width. If the index is empty it (re)creates the mapping at that
	// width; otherwise a mismatch aborts per §6/P7 rather than silently
	// returning mixed-dimension rows.
	EnsureSchema(ctx context.Context, dimension int) error

	// UpsertDocument inserts or replaces one documents row.
	UpsertDocument(ctx context.Context, doc Document) error

	// UpsertChunks inserts or replaces chunk-documents rows for a single
	// page. It returns one error per input chunk, nil where that chunk's
	// write succeeded, matching the input slice's order and length -
	// batched per SPEC_FULL's §4.F.4, with failed rows retried once
	// individually before the error is reported.
	UpsertChunks(ctx context.Context, chunks []ChunkRecord) []error
}
