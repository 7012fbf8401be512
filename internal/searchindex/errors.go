package searchindex

import (
	"fmt"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

type IndexErrorCause string

const (
	ErrCauseWriteFailure      IndexErrorCause = "index write failure"
	ErrCauseDimensionMismatch IndexErrorCause = "embedding dimension mismatch"
)

// IndexError is the §7 "downstream outage" row for the search index
// boundary: connection/statement failures are retryable, a schema-level
// dimension mismatch is not (it means the index was built for a
// different model and needs an operator to intervene, per §6/P7).
type IndexError struct {
	Message   string
	Retryable bool
	Cause     IndexErrorCause
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("searchindex error: %s: %s", e.Cause, e.Message)
}

func (e *IndexError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *IndexError) IsRetryable() bool {
	return e.Retryable
}
