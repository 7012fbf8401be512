package statestore

import "github.com/rohmanhakim/crawlcore/pkg/failure"

// StoreError is the store boundary's ClassifiedError. Conditional-check
// failures (lost races) are never retryable by themselves — the caller
// re-reads the record and decides; transient errors (throttling, network)
// are retryable with backoff.
type StoreError struct {
	Message   string
	Retryable bool
	Cause     ErrCause
}

type ErrCause string

const (
	ErrCauseConditionFailed ErrCause = "condition_failed"
	ErrCauseThrottled       ErrCause = "throttled"
	ErrCauseTransport       ErrCause = "transport"
	ErrCauseNotFound        ErrCause = "not_found"
)

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}
