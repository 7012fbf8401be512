package indexer

import (
	"fmt"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

type IndexerErrorCause string

const (
	ErrCauseRawObjectMissing IndexerErrorCause = "raw object missing"
	ErrCauseBreakerOpen      IndexerErrorCause = "circuit breaker open"
)

// IndexerError covers the indexer-local failure modes that don't already
// come typed from a dependency (textextract.TextExtractError,
// embedding.EmbeddingError, searchindex.IndexError).
type IndexerError struct {
	Message   string
	Retryable bool
	Cause     IndexerErrorCause
}

func (e *IndexerError) Error() string {
	return fmt.Sprintf("indexer error: %s: %s", e.Cause, e.Message)
}

func (e *IndexerError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *IndexerError) IsRetryable() bool {
	return e.Retryable
}
