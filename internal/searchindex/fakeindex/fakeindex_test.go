package fakeindex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlcore/internal/searchindex"
	"github.com/rohmanhakim/crawlcore/internal/searchindex/fakeindex"
)

func TestEnsureSchemaAssertsDimensionOnceDocumentsExist(t *testing.T) {
	idx := fakeindex.New()
	require.NoError(t, idx.EnsureSchema(context.Background(), 1536))

	require.NoError(t, idx.UpsertDocument(context.Background(), searchindex.Document{
		URLHash: "h1", URL: "https://example.com/", Domain: "example.com", FetchedAt: time.Now(),
		Embedding: make([]float32, 1536),
	}))

	err := idx.EnsureSchema(context.Background(), 768)
	require.Error(t, err)
	var idxErr *searchindex.IndexError
	require.ErrorAs(t, err, &idxErr)
	require.Equal(t, searchindex.ErrCauseDimensionMismatch, idxErr.Cause)
}

func TestUpsertChunksRetriesFailedRecord(t *testing.T) {
	idx := fakeindex.New()
	idx.FailChunkOnce(1)

	errs := idx.UpsertChunks(context.Background(), []searchindex.ChunkRecord{
		{URLHash: "h1", ChunkIdx: 0, Text: "first"},
		{URLHash: "h1", ChunkIdx: 1, Text: "second"},
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	chunks := idx.Chunks("h1")
	require.Len(t, chunks, 2)
}
