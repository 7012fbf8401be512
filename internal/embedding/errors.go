package embedding

import (
	"fmt"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

type EmbeddingErrorCause string

const (
	ErrCauseRequestFailure  EmbeddingErrorCause = "embedding request failure"
	ErrCauseVectorMismatch  EmbeddingErrorCause = "vector count mismatch"
	ErrCauseDimensionDrift  EmbeddingErrorCause = "vector dimension mismatch"
)

// EmbeddingError is the §7 "downstream outage"/"corrupt payload" rows for
// the embedding boundary: transport failures are retryable, a response
// that doesn't match what was asked for is not - see SPEC_FULL's Open
// Question #3 decision (a partial embedding response is never upserted
// with some chunks silently missing their vector).
type EmbeddingError struct {
	Message   string
	Retryable bool
	Cause     EmbeddingErrorCause
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error: %s: %s", e.Cause, e.Message)
}

func (e *EmbeddingError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *EmbeddingError) IsRetryable() bool {
	return e.Retryable
}
