package indexer

import "time"

// Config is the indexer worker's static configuration, grouped the way
// the teacher's own config.Config groups crawl settings.
type Config struct {
	// EnableEmbeddings, when false, skips embedding generation entirely
	// and omits the embedding field from both document and chunk
	// records (Open Question #4) - never a zero vector.
	EnableEmbeddings bool
	ChunkMaxTokens   int
	ChunkOverlap     int
	// BreakerMaxFailures is how many consecutive downstream failures
	// open the circuit before probing again after BreakerTimeout.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Outcome reports what ProcessMessage did with one IndexMessage, the
// indexer's analogue of internal/crawler.Outcome.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	// OutcomeDeferred covers every retryable downstream failure (circuit
	// breaker open, transport error): the message is left un-acked and
	// the queue's own visibility-timeout/ReceiveCount redrive handles
	// retry, exactly like internal/crawler's queue-native redrive tier.
	OutcomeDeferred     Outcome = "deferred"
	OutcomeDeadLettered Outcome = "dead_lettered"
)
