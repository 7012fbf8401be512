package failure

// Severity classifies whether a ClassifiedError may be retried or whether it
// terminates the work item permanently. Every boundary in the pipeline
// (robots, fetch, store, queue, embedding, index) returns one of these
// instead of a bare error, so callers never need to string-match to decide
// whether to retry.
type Severity int

// scheduler control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

type ClassifiedError interface {
	error
	Severity() Severity
}

// Retryable is implemented by ClassifiedErrors that additionally know
// whether a retry is worthwhile, independent of Severity (which only
// controls whether the worker slot aborts the whole message).
type Retryable interface {
	IsRetryable() bool
}
