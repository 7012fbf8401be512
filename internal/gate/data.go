package gate

import "time"

/*
Responsibilities

- Fuse robots evaluation and sliding-window QPS behind one Gate decision
- Make the combined check-and-record atomic per domain, so two workers
  racing on the same domain never both believe they got the slot

A Decision never blocks by itself; callers that get Wait > 0 are
expected to requeue/defer the message rather than sleep in the worker
loop, since leases have finite TTLs.
*/

// Decision is the outcome of evaluating one URL against robots and the
// domain's QPS ceiling.
type Decision struct {
	Allowed    bool
	Reason     string
	CrawlDelay time.Duration
	// Wait is how long the caller should defer before retrying when the
	// QPS ceiling is currently exhausted (Allowed may still be true: the
	// URL is permitted, just not admitted this instant).
	Wait time.Duration
}

// RobotsPolicy is the subset of a ruleSet exposed outside internal/robots
// for logging/diagnostics; the gate itself only ever needs a Decision.
type RobotsPolicy struct {
	Host         string
	CrawlDelay   *time.Duration
	MatchedGroup bool
}
