package indexer

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/rohmanhakim/crawlcore/internal/chunk"
	"github.com/rohmanhakim/crawlcore/internal/embedding"
	"github.com/rohmanhakim/crawlcore/internal/objectstore"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/searchindex"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
	"github.com/rohmanhakim/crawlcore/internal/textextract"
)

/*
Worker consumes internal/queue.IndexMessage and carries a fetched page
through extraction, chunking, embedding and bulk ingest
(internal/crawler.Worker's sibling, §4.F). It owns no per-URL lease - the
index queue's own visibility timeout and maxReceiveCount redrive is the
only retry mechanism here, since nothing downstream of the crawler needs
the statestore's URL-level attempt counter.

Downstream calls (embedding, index) are wrapped in their own
sony/gobreaker circuit breakers so a sustained outage in either stops
hammering it and fails fast instead, per §7's "circuit-break when
sustained".
*/
type Worker struct {
	cfg Config

	rawStore objectstore.Store
	queue    queue.Queue[queue.IndexMessage]

	embedder embedding.Client
	index    searchindex.Index
	logger   telemetry.Logger

	embeddingBreaker *gobreaker.CircuitBreaker
	indexBreaker     *gobreaker.CircuitBreaker
}

func NewWorker(
	cfg Config,
	rawStore objectstore.Store,
	q queue.Queue[queue.IndexMessage],
	embedder embedding.Client,
	index searchindex.Index,
	logger telemetry.Logger,
) *Worker {
	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
	}

	return &Worker{
		cfg:      cfg,
		rawStore: rawStore,
		queue:    q,
		embedder: embedder,
		index:    index,
		logger:   logger,
		embeddingBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embedding",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: readyToTrip,
		}),
		indexBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "searchindex",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: readyToTrip,
		}),
	}
}

// EnsureSchema runs once at startup: it asserts the configured model's
// dimension against the live index, recreating the mapping only when
// the index is empty (§6/P7).
func (w *Worker) EnsureSchema(ctx context.Context) error {
	if !w.cfg.EnableEmbeddings {
		return nil
	}
	return w.index.EnsureSchema(ctx, w.embedder.Dimension())
}

func (w *Worker) ProcessMessage(ctx context.Context, env queue.Envelope[queue.IndexMessage]) (Outcome, error) {
	msg := env.Body

	raw, err := w.rawStore.Get(ctx, msg.RawKey)
	if err != nil {
		_ = w.queue.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonCorruptPayload)
		return OutcomeDeadLettered, nil
	}

	doc, extractErr := textextract.Extract(raw)
	if extractErr != nil {
		_ = w.queue.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonCorruptPayload)
		return OutcomeDeadLettered, nil
	}

	lang := doc.Lang
	if lang == "" {
		lang = textextract.DetectLanguage(doc.Text)
	}

	chunks := chunk.Split(doc.Text, chunk.Param{MaxTokens: w.cfg.ChunkMaxTokens, OverlapTokens: w.cfg.ChunkOverlap})

	indexDoc := searchindex.Document{
		URLHash:   msg.URLHash,
		URL:       msg.URL,
		Domain:    msg.Domain,
		Site:      msg.Domain,
		Lang:      lang,
		Title:     doc.Title,
		Body:      doc.Text,
		FetchedAt: msg.FetchedAt,
	}
	indexChunks := make([]searchindex.ChunkRecord, len(chunks))
	for i, c := range chunks {
		indexChunks[i] = searchindex.ChunkRecord{URLHash: msg.URLHash, ChunkIdx: c.Index, Text: c.Text}
	}

	if w.cfg.EnableEmbeddings && len(chunks) > 0 {
		vectors, outcome := w.embedChunks(ctx, env, chunks)
		if outcome != "" {
			return outcome, nil
		}
		for i := range indexChunks {
			indexChunks[i].Embedding = vectors[i]
		}
		// The document-level embedding represents the whole page; the
		// first chunk (the page's lead section) stands in for it rather
		// than re-embedding the full body a second time.
		indexDoc.Embedding = vectors[0]
	}

	if outcome := w.upsertDocument(ctx, env, indexDoc); outcome != "" {
		return outcome, nil
	}
	if outcome := w.upsertChunks(ctx, env, indexChunks); outcome != "" {
		return outcome, nil
	}

	if err := w.queue.Ack(ctx, env.ReceiptHandle); err != nil {
		return "", err
	}
	return OutcomeIndexed, nil
}

// embedChunks runs the embedding call through the breaker. A breaker
// trip or transport failure returns OutcomeDeferred (left un-acked, the
// queue's native redrive retries it); a vector-count mismatch is
// permanent (Open Question #3) and is dead-lettered immediately.
func (w *Worker) embedChunks(ctx context.Context, env queue.Envelope[queue.IndexMessage], chunks []chunk.Chunk) ([][]float32, Outcome) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	result, err := w.embeddingBreaker.Execute(func() (interface{}, error) {
		vectors, embedErr := w.embedder.Embed(ctx, texts)
		if embedErr != nil {
			return nil, embedErr
		}
		if len(vectors) != len(texts) {
			return nil, &embedding.EmbeddingError{
				Message:   "embedding client returned a different vector count than requested",
				Retryable: false,
				Cause:     embedding.ErrCauseVectorMismatch,
			}
		}
		return vectors, nil
	})
	if err == nil {
		return result.([][]float32), ""
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, OutcomeDeferred
	}

	if embedErr, ok := err.(*embedding.EmbeddingError); ok && !embedErr.Retryable {
		_ = w.queue.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonCorruptPayload)
		return nil, OutcomeDeadLettered
	}
	return nil, OutcomeDeferred
}

// upsertDocument writes the whole-page row through the index breaker,
// deferring to native queue redrive on any failure - a search-index
// write failure is always treated as a downstream outage, never a
// reason to drop the message.
func (w *Worker) upsertDocument(ctx context.Context, env queue.Envelope[queue.IndexMessage], doc searchindex.Document) Outcome {
	_, err := w.indexBreaker.Execute(func() (interface{}, error) {
		return nil, w.index.UpsertDocument(ctx, doc)
	})
	if err != nil {
		return OutcomeDeferred
	}
	return ""
}

func (w *Worker) upsertChunks(ctx context.Context, env queue.Envelope[queue.IndexMessage], chunks []searchindex.ChunkRecord) Outcome {
	if len(chunks) == 0 {
		return ""
	}
	_, err := w.indexBreaker.Execute(func() (interface{}, error) {
		for _, e := range w.index.UpsertChunks(ctx, chunks) {
			if e != nil {
				return nil, e
			}
		}
		return nil, nil
	})
	if err != nil {
		return OutcomeDeferred
	}
	return ""
}
