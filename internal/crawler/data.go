package crawler

import "time"

/*
Responsibilities

- Model the one-message-at-a-time worker state machine:
  Received -> Locking -> Gated -> Fetching -> Persisting -> Acking
- Carry the tunables a worker needs (lease TTL, renewal cadence, retry
  budget) in one grouped config, the same shape the teacher's scheduler
  groups its own run parameters in

A Worker instance is shared by every goroutine in a pool; all per-message
state lives on the stack of the call processing that message, never on
the Worker itself.
*/

// WorkerState names the stage a single in-flight message is passing
// through. It exists for logging and tests, not for branching - the
// code that drives a message from one stage to the next is linear.
type WorkerState string

const (
	StateReceived   WorkerState = "received"
	StateLocking    WorkerState = "locking"
	StateGated      WorkerState = "gated"
	StateFetching   WorkerState = "fetching"
	StatePersisting WorkerState = "persisting"
	StateAcking     WorkerState = "acking"
)

// Config groups the tunables a Worker needs beyond its collaborators.
type Config struct {
	Owner            string
	UserAgent        string
	LeaseTTL         time.Duration
	LeaseRenewEvery  time.Duration
	MaxAttempts      int
	VisibilityTimeout time.Duration
	MaxCrawlDepth    int
}

// Outcome classifies how processing a single message concluded, for
// logging and test assertions.
type Outcome string

const (
	OutcomeFetched           Outcome = "fetched"
	OutcomeSkippedDuplicate  Outcome = "skipped_duplicate"
	OutcomeSkippedTerminal   Outcome = "skipped_terminal"
	OutcomeDeferredByGate    Outcome = "deferred_by_gate"
	OutcomeRetryScheduled    Outcome = "retry_scheduled"
	OutcomeDeadLettered      Outcome = "dead_lettered"
	// OutcomeSkippedByPolicy is a robots-disallowed URL: recorded done
	// with an empty raw_location and acked, never fetched.
	OutcomeSkippedByPolicy Outcome = "skipped_by_policy"
	// OutcomeFailedPermanently is a non-retryable fetch outcome (e.g. a
	// 404/403/410): recorded failed and acked, never dead-lettered.
	OutcomeFailedPermanently Outcome = "failed_permanently"
)
