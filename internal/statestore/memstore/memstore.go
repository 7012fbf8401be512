package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/crawlcore/internal/statestore"
)

/*
MemStore is an in-process implementation of statestore.Store, keyed on a
mutex-guarded map the same way the teacher's robots cache.MemoryCache
keeps a single-process cache. It backs unit tests for the lock/lease
protocol (P1-P3) without a live DynamoDB table.
*/

type MemStore struct {
	mu      sync.Mutex
	records map[string]statestore.URLRecord
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]statestore.URLRecord)}
}

func (m *MemStore) TryAcquire(
	ctx context.Context,
	urlHash, owner string,
	leaseTTL time.Duration,
	seed statestore.URLRecord,
) (statestore.AcquireResult, statestore.URLRecord, *statestore.StoreError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	rec, exists := m.records[urlHash]

	if !exists {
		rec = seed
		rec.URLHash = urlHash
		rec.State = statestore.StateLeased
		rec.Owner = owner
		rec.LeaseExpiresAt = now.Add(leaseTTL)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		m.records[urlHash] = rec
		return statestore.Acquired, rec, nil
	}

	switch rec.State {
	case statestore.StateDone, statestore.StateFailed:
		return statestore.Terminal, rec, nil
	case statestore.StateLeased:
		if now.Before(rec.LeaseExpiresAt) {
			return statestore.AlreadyHeld, rec, nil
		}
		// lease expired: fall through to acquire
	}

	rec.State = statestore.StateLeased
	rec.Owner = owner
	rec.LeaseExpiresAt = now.Add(leaseTTL)
	rec.UpdatedAt = now
	m.records[urlHash] = rec
	return statestore.Acquired, rec, nil
}

func (m *MemStore) RenewLease(
	ctx context.Context,
	urlHash, owner string,
	leaseTTL time.Duration,
) (statestore.RenewResult, *statestore.StoreError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[urlHash]
	if !exists || rec.State != statestore.StateLeased || rec.Owner != owner {
		return statestore.Lost, nil
	}

	rec.LeaseExpiresAt = time.Now().Add(leaseTTL)
	rec.UpdatedAt = time.Now()
	m.records[urlHash] = rec
	return statestore.Renewed, nil
}

func (m *MemStore) Complete(ctx context.Context, urlHash, owner string, at time.Time, rawLocation string) *statestore.StoreError {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[urlHash]
	if !exists || rec.Owner != owner {
		return &statestore.StoreError{Message: "complete: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
	}

	rec.State = statestore.StateDone
	rec.Owner = ""
	rec.LastCrawledAt = at
	rec.RawLocation = rawLocation
	rec.UpdatedAt = at
	m.records[urlHash] = rec
	return nil
}

func (m *MemStore) ScheduleRetry(
	ctx context.Context,
	urlHash, owner string,
	maxAttempts int,
	lastError string,
) (statestore.URLRecord, *statestore.StoreError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[urlHash]
	if !exists || rec.Owner != owner {
		return statestore.URLRecord{}, &statestore.StoreError{Message: "schedule retry: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
	}

	rec.Attempts++
	rec.Owner = ""
	rec.LastError = lastError
	rec.UpdatedAt = time.Now()
	if rec.Attempts >= maxAttempts {
		rec.State = statestore.StateFailed
	} else {
		rec.State = statestore.StatePending
	}
	m.records[urlHash] = rec
	return rec, nil
}

// Fail transitions the record straight to failed without touching
// Attempts - used for outcomes that are terminal on the first
// observation (permanent HTTP status), as distinct from ScheduleRetry's
// attempts-exhausted path.
func (m *MemStore) Fail(ctx context.Context, urlHash, owner string, lastError string, at time.Time) *statestore.StoreError {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[urlHash]
	if !exists || rec.Owner != owner {
		return &statestore.StoreError{Message: "fail: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
	}

	rec.State = statestore.StateFailed
	rec.Owner = ""
	rec.LastError = lastError
	rec.UpdatedAt = at
	m.records[urlHash] = rec
	return nil
}

func (m *MemStore) ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, *statestore.StoreError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reclaimed := 0
	for hash, rec := range m.records {
		if limit > 0 && reclaimed >= limit {
			break
		}
		if rec.State == statestore.StateLeased && now.After(rec.LeaseExpiresAt) {
			rec.State = statestore.StatePending
			rec.Owner = ""
			rec.UpdatedAt = now
			m.records[hash] = rec
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (m *MemStore) Get(ctx context.Context, urlHash string) (statestore.URLRecord, *statestore.StoreError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[urlHash]
	if !exists {
		return statestore.URLRecord{}, &statestore.StoreError{Message: "not found", Retryable: false, Cause: statestore.ErrCauseNotFound}
	}
	return rec, nil
}

// Size reports the number of records held, for test assertions.
func (m *MemStore) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
