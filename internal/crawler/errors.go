package crawler

import "github.com/rohmanhakim/crawlcore/pkg/failure"

// CrawlError wraps a failure internal to the worker loop itself (not the
// fetch - FetchError already classifies that) so callers driving the
// worker pool can treat every stage uniformly via failure.ClassifiedError.
type CrawlError struct {
	Message   string
	Retryable bool
}

func (e *CrawlError) Error() string {
	return e.Message
}

func (e *CrawlError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CrawlError) IsRetryable() bool {
	return e.Retryable
}
