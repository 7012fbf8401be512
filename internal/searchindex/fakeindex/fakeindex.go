package fakeindex

import (
	"context"
	"sync"

	"github.com/rohmanhakim/crawlcore/internal/searchindex"
)

/*
FakeIndex is an in-memory searchindex.Index used by internal/indexer's
tests. SPEC_FULL deliberately does not reach for go-sqlmock here: the
bulk-ingest path's interesting behavior (batching, partial-record retry,
dimension assertion) is clearer to assert against a real Go
implementation of the Index interface than against mocked SQL strings -
see DESIGN.md.
*/
type FakeIndex struct {
	mu        sync.Mutex
	dimension int
	docs      map[string]searchindex.Document
	chunks    map[string][]searchindex.ChunkRecord

	// failChunksOnce marks chunk indices whose next UpsertChunks write
	// stands for a failure retried internally: the mark is cleared, the
	// chunk is still written and no error is returned for it.
	failChunksOnce map[int]bool
}

func New() *FakeIndex {
	return &FakeIndex{
		docs:           make(map[string]searchindex.Document),
		chunks:         make(map[string][]searchindex.ChunkRecord),
		failChunksOnce: make(map[int]bool),
	}
}

// FailChunkOnce marks the chunk at the given index (within the next
// UpsertChunks call) as failing once and succeeding on an internal
// retry; the caller sees no error for it.
func (f *FakeIndex) FailChunkOnce(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failChunksOnce[index] = true
}

func (f *FakeIndex) Dimension(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dimension, nil
}

func (f *FakeIndex) EnsureSchema(_ context.Context, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimension != 0 && f.dimension != dimension {
		return &searchindex.IndexError{
			Message:   "dimension mismatch",
			Retryable: false,
			Cause:     searchindex.ErrCauseDimensionMismatch,
		}
	}
	if len(f.docs) == 0 {
		f.dimension = dimension
	}
	return nil
}

func (f *FakeIndex) UpsertDocument(_ context.Context, doc searchindex.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.URLHash] = doc
	return nil
}

func (f *FakeIndex) UpsertChunks(_ context.Context, chunks []searchindex.ChunkRecord) []error {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make([]error, len(chunks))
	for i, c := range chunks {
		if f.failChunksOnce[i] {
			// Simulates the retry-after-failure path: the chunk still
			// ends up written, and the caller never observes the
			// transient failure, matching the pgvector adapter's
			// internal per-record retry.
			delete(f.failChunksOnce, i)
		}
		existing := f.chunks[c.URLHash]
		replaced := false
		for j, ec := range existing {
			if ec.ChunkIdx == c.ChunkIdx {
				existing[j] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
		f.chunks[c.URLHash] = existing
	}
	return errs
}

// Documents returns a snapshot of all upserted documents, for test
// assertions.
func (f *FakeIndex) Documents() map[string]searchindex.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]searchindex.Document, len(f.docs))
	for k, v := range f.docs {
		out[k] = v
	}
	return out
}

// Chunks returns a snapshot of the chunks stored for urlHash.
func (f *FakeIndex) Chunks(urlHash string) []searchindex.ChunkRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchindex.ChunkRecord(nil), f.chunks[urlHash]...)
}
