package discovery

import "github.com/rohmanhakim/crawlcore/pkg/failure"

type DiscoveryError struct {
	Message   string
	Retryable bool
}

func (e *DiscoveryError) Error() string {
	return e.Message
}

func (e *DiscoveryError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *DiscoveryError) IsRetryable() bool {
	return e.Retryable
}
