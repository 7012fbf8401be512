package memqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/crawlcore/internal/queue"
)

/*
MemQueue is an in-process queue.Queue[T] used by unit and integration
tests in place of SQS. It reproduces the receive/visibility-timeout/
max-receive-before-DLQ contract (SPEC_FULL 6) with a mutex-guarded slice
instead of a live queue, the same "fake the port, not the network"
approach the teacher's robots cache.MemoryCache takes for its own port.
*/

type inFlight[T any] struct {
	body        T
	receiveCount int
	visibleAt   time.Time
}

type MemQueue[T any] struct {
	mu              sync.Mutex
	pending         []*inFlight[T]
	leased          map[string]*inFlight[T]
	deadLettered    []deadLetterEntry[T]
	maxReceiveCount int
}

type deadLetterEntry[T any] struct {
	body   T
	reason queue.DeadLetterReason
}

func New[T any](maxReceiveCount int) *MemQueue[T] {
	return &MemQueue[T]{
		leased:          make(map[string]*inFlight[T]),
		maxReceiveCount: maxReceiveCount,
	}
}

func (q *MemQueue[T]) Send(ctx context.Context, body T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &inFlight[T]{body: body})
	return nil
}

func (q *MemQueue[T]) SendBatch(ctx context.Context, bodies []T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, body := range bodies {
		q.pending = append(q.pending, &inFlight[T]{body: body})
	}
	return nil
}

func (q *MemQueue[T]) Receive(ctx context.Context, maxMessages int, visibilityTimeout time.Duration) ([]queue.Envelope[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimExpiredLocked()

	n := maxMessages
	if n > len(q.pending) {
		n = len(q.pending)
	}
	if n <= 0 {
		return nil, nil
	}

	batch := q.pending[:n]
	q.pending = q.pending[n:]

	envelopes := make([]queue.Envelope[T], 0, n)
	for _, entry := range batch {
		handle := uuid.NewString()
		entry.receiveCount++
		entry.visibleAt = time.Now().Add(visibilityTimeout)
		q.leased[handle] = entry
		envelopes = append(envelopes, queue.Envelope[T]{Body: entry.body, ReceiptHandle: handle, ReceiveCount: entry.receiveCount})
	}
	return envelopes, nil
}

// reclaimExpiredLocked returns leased messages whose visibility expired
// back to pending, or to the dead-letter slice once maxReceiveCount is
// exceeded. Caller must hold q.mu.
func (q *MemQueue[T]) reclaimExpiredLocked() {
	now := time.Now()
	for handle, entry := range q.leased {
		if now.Before(entry.visibleAt) {
			continue
		}
		delete(q.leased, handle)
		if q.maxReceiveCount > 0 && entry.receiveCount >= q.maxReceiveCount {
			q.deadLettered = append(q.deadLettered, deadLetterEntry[T]{body: entry.body, reason: queue.DeadLetterReasonRetriesExhausted})
			continue
		}
		q.pending = append(q.pending, entry)
	}
}

func (q *MemQueue[T]) Ack(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.leased[receiptHandle]; !ok {
		return fmt.Errorf("memqueue: unknown receipt handle %q", receiptHandle)
	}
	delete(q.leased, receiptHandle)
	return nil
}

func (q *MemQueue[T]) ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.leased[receiptHandle]
	if !ok {
		return fmt.Errorf("memqueue: unknown receipt handle %q", receiptHandle)
	}
	entry.visibleAt = time.Now().Add(timeout)
	return nil
}

func (q *MemQueue[T]) DeadLetter(ctx context.Context, receiptHandle string, reason queue.DeadLetterReason) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.leased[receiptHandle]
	if !ok {
		return fmt.Errorf("memqueue: unknown receipt handle %q", receiptHandle)
	}
	delete(q.leased, receiptHandle)
	q.deadLettered = append(q.deadLettered, deadLetterEntry[T]{body: entry.body, reason: reason})
	return nil
}

func (q *MemQueue[T]) ApproxDepth(ctx context.Context) (queue.Depth, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Depth{ApproxMessages: len(q.pending) + len(q.leased)}, nil
}

// DeadLetterCount reports how many messages were dead-lettered, for test
// assertions.
func (q *MemQueue[T]) DeadLetterCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadLettered)
}
