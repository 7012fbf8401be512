package textextract

import (
	"fmt"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

type TextExtractErrorCause string

const (
	ErrCauseUnparseableHTML TextExtractErrorCause = "unparseable html"
	ErrCauseEmptyDocument   TextExtractErrorCause = "empty document"
)

// TextExtractError is the textextract package's row in the §7 taxonomy:
// a corrupt/empty payload is always permanent, never worth retrying.
type TextExtractError struct {
	Message string
	Cause   TextExtractErrorCause
}

func (e *TextExtractError) Error() string {
	return fmt.Sprintf("textextract error: %s: %s", e.Cause, e.Message)
}

func (e *TextExtractError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *TextExtractError) IsRetryable() bool {
	return false
}
