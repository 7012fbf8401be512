// Package runloop implements the bounded, two-phase-shutdown event loop
// every worker binary (discovery, crawler, indexer) runs on top of: long
// poll a queue, process deliveries on a capped number of in-flight
// goroutines, and on shutdown stop polling before draining whatever is
// still in flight within a deadline.
package runloop

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
)

// Options groups the tunables the loop needs beyond its collaborators,
// the same grouped-config shape internal/crawler.Config and
// internal/discovery.Coordinator use for their own run parameters.
type Options struct {
	// Concurrency bounds how many deliveries are processed at once.
	Concurrency int
	// MaxMessages is the batch size requested per Receive call.
	MaxMessages int
	// VisibilityTimeout is the lease each delivery gets for the duration
	// of Process.
	VisibilityTimeout time.Duration
	// PollInterval is how long to sleep after an empty Receive before
	// polling again.
	PollInterval time.Duration
	// ShutdownGrace is how long, once ctx is canceled, in-flight
	// deliveries get to finish before the loop returns anyway.
	ShutdownGrace time.Duration
}

// Process handles one delivered message. A non-nil error is logged but
// never stops the loop - only ctx cancellation does that - since a
// single message's failure should never take down the whole worker.
type Process[T any] func(ctx context.Context, env queue.Envelope[T]) error

// Run polls q until ctx is canceled, fanning deliveries out across
// opts.Concurrency goroutines via a buffered channel used as a counting
// semaphore (the idiomatic rendering of "parallel in-flight message
// slots", errgroup.WithContext supplies the fan-in). On cancellation it
// stops polling immediately, waits up to opts.ShutdownGrace for
// in-flight work to finish, and returns.
func Run[T any](ctx context.Context, q queue.Queue[T], logger telemetry.Logger, opts Options, process Process[T]) error {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = opts.Concurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	group, groupCtx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, opts.Concurrency)

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		default:
		}

		envs, err := q.Receive(groupCtx, opts.MaxMessages, opts.VisibilityTimeout)
		if err != nil {
			if groupCtx.Err() != nil {
				break poll
			}
			logger.Warn("runloop: receive failed", zap.Error(err))
			time.Sleep(opts.PollInterval)
			continue
		}

		if len(envs) == 0 {
			select {
			case <-ctx.Done():
				break poll
			case <-time.After(opts.PollInterval):
				continue
			}
		}

		for _, env := range envs {
			env := env
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				break poll
			}
			group.Go(func() error {
				defer func() { <-slots }()
				defer func() {
					if r := recover(); r != nil {
						logger.Error("runloop: process panicked", zap.Any("panic", r), zap.Stack("stack"))
					}
				}()
				if err := process(groupCtx, env); err != nil {
					logger.Warn("runloop: process failed", zap.Error(err))
				}
				return nil
			})
		}
	}

	drained := make(chan error, 1)
	go func() { drained <- group.Wait() }()

	select {
	case err := <-drained:
		return err
	case <-time.After(opts.ShutdownGrace):
		return nil
	}
}
