package statestore

import (
	"context"
	"time"
)

// Store is the port every adapter (DynamoDB, in-memory) implements. All
// of its operations are safe to call concurrently from many owners; the
// adapter is responsible for making the state transition atomic.
type Store interface {
	// TryAcquire inserts a pending->leased transition, or takes over a
	// lease whose LeaseExpiresAt has already passed. Succeeds only when
	// no other live owner holds the record.
	TryAcquire(ctx context.Context, urlHash, owner string, leaseTTL time.Duration, seed URLRecord) (AcquireResult, URLRecord, *StoreError)

	// RenewLease extends an owned lease. Returns Lost the instant the
	// caller is no longer the recorded owner (lease reassigned or the
	// record reclaimed by another owner).
	RenewLease(ctx context.Context, urlHash, owner string, leaseTTL time.Duration) (RenewResult, *StoreError)

	// Complete marks the record done, clearing ownership. rawLocation is
	// the object-store pointer to the fetched HTML, or empty when the
	// record reached done without fetching (robots policy deny).
	Complete(ctx context.Context, urlHash, owner string, at time.Time, rawLocation string) *StoreError

	// ScheduleRetry records an attempt and returns the record to pending
	// (still retryable) or failed (attempts exhausted), clearing
	// ownership either way. lastError is persisted as the record's
	// diagnostic regardless of which branch is taken.
	ScheduleRetry(ctx context.Context, urlHash, owner string, maxAttempts int, lastError string) (URLRecord, *StoreError)

	// Fail transitions the record directly to failed - a terminal
	// outcome that is not a retry-exhaustion (e.g. a permanent HTTP
	// status), so it is never counted against Attempts. Conditional on
	// ownership, same as Complete.
	Fail(ctx context.Context, urlHash, owner string, lastError string, at time.Time) *StoreError

	// ReclaimExpired scans for leases past LeaseExpiresAt and returns
	// them to pending so another owner can acquire them. Returns the
	// number of records reclaimed.
	ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, *StoreError)

	// Get reads a single record without mutating it.
	Get(ctx context.Context, urlHash string) (URLRecord, *StoreError)
}
