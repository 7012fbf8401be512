package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlcore/internal/embedding"
	"github.com/rohmanhakim/crawlcore/internal/objectstore"
	objmemstore "github.com/rohmanhakim/crawlcore/internal/objectstore/memstore"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/queue/memqueue"
	"github.com/rohmanhakim/crawlcore/internal/searchindex/fakeindex"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
)

const testRawHTML = `<html lang="en"><head><title>Doc Title</title></head>
	<body><main>This is the body text used to build chunks for embedding
	and search indexing across more than just a couple of words so the
	chunker actually has something to window over during the test.</main>
	</body></html>`

type harness struct {
	worker     *Worker
	rawStore   *objmemstore.MemStore
	indexQueue *memqueue.MemQueue[queue.IndexMessage]
	embedder   *embedding.FakeClient
	index      *fakeindex.FakeIndex
}

func newHarness(t *testing.T, enableEmbeddings bool) *harness {
	t.Helper()

	rawStore := objmemstore.New()
	indexQueue := memqueue.New[queue.IndexMessage](5)
	embedder := embedding.NewFakeClient(4)
	index := fakeindex.New()

	worker := NewWorker(
		Config{
			EnableEmbeddings:   enableEmbeddings,
			ChunkMaxTokens:     8,
			ChunkOverlap:       2,
			BreakerMaxFailures: 3,
			BreakerTimeout:     50 * time.Millisecond,
		},
		rawStore, indexQueue, embedder, index, telemetry.NewLogger(zap.NewNop()),
	)

	return &harness{worker: worker, rawStore: rawStore, indexQueue: indexQueue, embedder: embedder, index: index}
}

func deliveredEnvelope(t *testing.T, q *memqueue.MemQueue[queue.IndexMessage], msg queue.IndexMessage) queue.Envelope[queue.IndexMessage] {
	t.Helper()
	require.NoError(t, q.Send(context.Background(), msg))
	envs, err := q.Receive(context.Background(), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	return envs[0]
}

func putRaw(t *testing.T, store objectstore.Store, key string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, []byte(testRawHTML), "text/html"))
}

func TestProcessMessage_IndexesDocumentAndChunksWithEmbeddings(t *testing.T) {
	h := newHarness(t, true)
	putRaw(t, h.rawStore, "raw/1.html")

	msg := queue.NewIndexMessage("hash-1", "https://example.com/a", "example.com", "raw/1.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeIndexed, outcome)

	docs := h.index.Documents()
	doc, ok := docs["hash-1"]
	require.True(t, ok)
	require.Equal(t, "Doc Title", doc.Title)
	require.Equal(t, "en", doc.Lang)
	require.NotEmpty(t, doc.Embedding)

	chunks := h.index.Chunks("hash-1")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.NotEmpty(t, c.Embedding)
	}
}

func TestProcessMessage_EmbeddingsDisabledOmitsVectors(t *testing.T) {
	h := newHarness(t, false)
	putRaw(t, h.rawStore, "raw/2.html")

	msg := queue.NewIndexMessage("hash-2", "https://example.com/b", "example.com", "raw/2.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeIndexed, outcome)

	doc := h.index.Documents()["hash-2"]
	require.Nil(t, doc.Embedding)
	for _, c := range h.index.Chunks("hash-2") {
		require.Nil(t, c.Embedding)
	}
}

func TestProcessMessage_MissingRawObjectDeadLetters(t *testing.T) {
	h := newHarness(t, true)

	msg := queue.NewIndexMessage("hash-3", "https://example.com/c", "example.com", "missing-key", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeadLettered, outcome)
	require.Equal(t, 1, h.indexQueue.DeadLetterCount())
}

func TestProcessMessage_CorruptHTMLDeadLetters(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.rawStore.Put(context.Background(), "raw/4.html", []byte("   "), "text/html"))

	msg := queue.NewIndexMessage("hash-4", "https://example.com/d", "example.com", "raw/4.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeadLettered, outcome)
	require.Equal(t, 1, h.indexQueue.DeadLetterCount())
}

func TestProcessMessage_VectorCountMismatchIsPermanent(t *testing.T) {
	h := newHarness(t, true)
	putRaw(t, h.rawStore, "raw/5.html")
	h.embedder.ShortCount(1)

	msg := queue.NewIndexMessage("hash-5", "https://example.com/e", "example.com", "raw/5.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeadLettered, outcome)
	require.Equal(t, 1, h.indexQueue.DeadLetterCount())
	require.Empty(t, h.index.Documents())
}

func TestProcessMessage_RetryableEmbeddingFailureDefersMessage(t *testing.T) {
	h := newHarness(t, true)
	putRaw(t, h.rawStore, "raw/6.html")
	h.embedder.FailNext(&embedding.EmbeddingError{Message: "timeout", Retryable: true, Cause: embedding.ErrCauseRequestFailure})

	msg := queue.NewIndexMessage("hash-6", "https://example.com/f", "example.com", "raw/6.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeferred, outcome)
	require.Equal(t, 0, h.indexQueue.DeadLetterCount())
	require.Empty(t, h.index.Documents())
}

func TestProcessMessage_ChunkWriteRetriedOnceThenSucceeds(t *testing.T) {
	h := newHarness(t, true)
	putRaw(t, h.rawStore, "raw/7.html")
	h.index.FailChunkOnce(0)

	msg := queue.NewIndexMessage("hash-7", "https://example.com/g", "example.com", "raw/7.html", time.Now())
	env := deliveredEnvelope(t, h.indexQueue, msg)

	outcome, err := h.worker.ProcessMessage(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, OutcomeIndexed, outcome)
	require.NotEmpty(t, h.index.Chunks("hash-7"))
}
