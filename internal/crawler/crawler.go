package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rohmanhakim/crawlcore/internal/fetcher"
	"github.com/rohmanhakim/crawlcore/internal/gate"
	"github.com/rohmanhakim/crawlcore/internal/objectstore"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/statestore"
	"github.com/rohmanhakim/crawlcore/internal/urlnorm"
	"github.com/rohmanhakim/crawlcore/pkg/failure"
	"github.com/rohmanhakim/crawlcore/pkg/retry"
)

/*
Responsibilities

- Drive a single crawl message through Received -> Locking -> Gated ->
  Fetching -> Persisting -> Acking
- Hold the URL's state-store lease for exactly as long as the message is
  in flight, renewing it on a supervised goroutine that aborts the fetch
  the instant the lease is lost to another owner
- Classify every fetch outcome into complete / retry / dead-letter and
  drive the state store and queue accordingly
- Route discovered outlinks: same-domain directly back onto the crawl
  queue, cross-domain through a discovery message per distinct domain

Only one message is ever in flight per call to ProcessMessage; a pool of
goroutines calling it concurrently is what the crawler binary supplies.
*/

type Worker struct {
	cfg Config

	store          statestore.Store
	gate           gate.Gate
	fetcher        fetcher.Fetcher
	normalizer     urlnorm.Normalizer
	rawStore       objectstore.Store
	crawlQueue     queue.Queue[queue.CrawlMessage]
	discoveryQueue queue.Queue[queue.DiscoveryMessage]
	indexQueue     queue.Queue[queue.IndexMessage]
	retryParam     retry.RetryParam
}

func NewWorker(
	cfg Config,
	store statestore.Store,
	g gate.Gate,
	htmlFetcher fetcher.Fetcher,
	normalizer urlnorm.Normalizer,
	rawStore objectstore.Store,
	crawlQueue queue.Queue[queue.CrawlMessage],
	discoveryQueue queue.Queue[queue.DiscoveryMessage],
	indexQueue queue.Queue[queue.IndexMessage],
	retryParam retry.RetryParam,
) *Worker {
	return &Worker{
		cfg:            cfg,
		store:          store,
		gate:           g,
		fetcher:        htmlFetcher,
		normalizer:     normalizer,
		rawStore:       rawStore,
		crawlQueue:     crawlQueue,
		discoveryQueue: discoveryQueue,
		indexQueue:     indexQueue,
		retryParam:     retryParam,
	}
}

// ProcessMessage drives one delivered crawl message through the full
// state machine and leaves the queue in its final state (acked, left in
// flight for native redrive, or dead-lettered) before returning.
func (w *Worker) ProcessMessage(ctx context.Context, env queue.Envelope[queue.CrawlMessage]) (Outcome, error) {
	msg := env.Body

	target, err := url.Parse(msg.URL)
	if err != nil {
		_ = w.crawlQueue.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonCorruptPayload)
		return OutcomeDeadLettered, nil
	}

	// --- Locking ---
	acquireResult, _, storeErr := w.store.TryAcquire(ctx, msg.URLHash, w.cfg.Owner, w.cfg.LeaseTTL, statestore.URLRecord{
		URL: msg.URL, Domain: msg.Domain, URLHash: msg.URLHash, State: statestore.StatePending,
	})
	if storeErr != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: try-acquire: %v", storeErr), Retryable: true}
	}
	switch acquireResult {
	case statestore.AlreadyHeld:
		_ = w.crawlQueue.Ack(ctx, env.ReceiptHandle)
		return OutcomeSkippedDuplicate, nil
	case statestore.Terminal:
		_ = w.crawlQueue.Ack(ctx, env.ReceiptHandle)
		return OutcomeSkippedTerminal, nil
	}

	// --- Gated ---
	if w.gate != nil {
		decision, gateErr := w.gate.Evaluate(ctx, *target)
		if gateErr != nil {
			return "", &CrawlError{Message: fmt.Sprintf("crawler: gate evaluate: %v", gateErr), Retryable: true}
		}
		if !decision.Allowed {
			// A policy deny is not a failure: we saw and respected the
			// rule, so the record goes straight to done with no raw
			// content and the message acks - never the DLQ.
			if storeErr := w.store.Complete(ctx, msg.URLHash, w.cfg.Owner, time.Now(), ""); storeErr != nil {
				return "", &CrawlError{Message: fmt.Sprintf("crawler: complete (policy deny): %v", storeErr), Retryable: true}
			}
			if err := w.crawlQueue.Ack(ctx, env.ReceiptHandle); err != nil {
				return "", &CrawlError{Message: fmt.Sprintf("crawler: ack (policy deny): %v", err), Retryable: true}
			}
			return OutcomeSkippedByPolicy, nil
		}
		if decision.Wait > 0 {
			// The URL is permitted but the domain's QPS budget is
			// exhausted right now. Extend visibility so the message
			// comes back after the wait instead of occupying a worker
			// slot, and renew the lease once so it does not expire out
			// from under the deferral.
			if _, renewErr := w.store.RenewLease(ctx, msg.URLHash, w.cfg.Owner, decision.Wait+w.cfg.LeaseTTL); renewErr != nil {
				return "", &CrawlError{Message: fmt.Sprintf("crawler: renew before defer: %v", renewErr), Retryable: true}
			}
			if err := w.crawlQueue.ExtendVisibility(ctx, env.ReceiptHandle, decision.Wait); err != nil {
				return "", &CrawlError{Message: fmt.Sprintf("crawler: extend visibility: %v", err), Retryable: true}
			}
			return OutcomeDeferredByGate, nil
		}
	}

	// --- Fetching, with a supervised lease renewer ---
	fetchCtx, cancel := context.WithCancel(ctx)
	renewerDone := make(chan struct{})
	go w.superviseLease(fetchCtx, cancel, msg.URLHash, renewerDone)

	fetchParam := fetcher.NewFetchParam(*target, w.cfg.UserAgent)
	result, fetchErr := w.fetcher.Fetch(fetchCtx, msg.Depth, fetchParam, w.retryParam)

	cancel()
	<-renewerDone

	if w.gate != nil {
		w.gate.RecordFetchOutcome(target.Hostname(), fetchErr == nil)
	}

	if fetchErr != nil {
		return w.handleFetchFailure(ctx, msg, env, fetchErr)
	}

	// --- Persisting ---
	fetchedAt := result.FetchedAt()
	rawKey := objectstore.RawKey(msg.Domain, fetchedAt, msg.URLHash)
	metaKey := objectstore.MetaKey(msg.Domain, fetchedAt, msg.URLHash)

	if err := w.rawStore.Put(ctx, rawKey, result.Body(), result.Headers()["Content-Type"]); err != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: persist raw body: %v", err), Retryable: true}
	}
	if metaBytes, err := encodeMeta(objectstore.Meta{
		URL: msg.URL, URLHash: msg.URLHash, Domain: msg.Domain, FetchedAt: fetchedAt,
		StatusCode: result.Code(), ContentType: result.Headers()["Content-Type"], SizeBytes: int(result.SizeByte()),
	}); err == nil {
		_ = w.rawStore.Put(ctx, metaKey, metaBytes, "application/json")
	}

	if err := w.routeOutlinks(ctx, msg, *target, result); err != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: route outlinks: %v", err), Retryable: true}
	}

	indexMsg := queue.NewIndexMessage(msg.URLHash, msg.URL, msg.Domain, rawKey, fetchedAt)
	if err := w.indexQueue.Send(ctx, indexMsg); err != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: enqueue index message: %v", err), Retryable: true}
	}

	// --- Acking ---
	if storeErr := w.store.Complete(ctx, msg.URLHash, w.cfg.Owner, fetchedAt, rawKey); storeErr != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: complete: %v", storeErr), Retryable: true}
	}
	if err := w.crawlQueue.Ack(ctx, env.ReceiptHandle); err != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: ack: %v", err), Retryable: true}
	}

	return OutcomeFetched, nil
}

// superviseLease renews the lease on urlHash every cfg.LeaseRenewEvery
// until ctx is done; it calls cancel the instant a renewal reports Lost
// so a fetch in flight against a lease some other owner has taken over
// is aborted rather than left to persist stale work.
func (w *Worker) superviseLease(ctx context.Context, cancel context.CancelFunc, urlHash string, done chan<- struct{}) {
	defer close(done)

	interval := w.cfg.LeaseRenewEvery
	if interval <= 0 {
		interval = w.cfg.LeaseTTL / 2
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := w.store.RenewLease(ctx, urlHash, w.cfg.Owner, w.cfg.LeaseTTL)
			if err != nil || result == statestore.Lost {
				cancel()
				return
			}
		}
	}
}

func (w *Worker) handleFetchFailure(ctx context.Context, msg queue.CrawlMessage, env queue.Envelope[queue.CrawlMessage], fetchErr failure.ClassifiedError) (Outcome, error) {
	retryable := true
	if r, ok := fetchErr.(interface{ IsRetryable() bool }); ok {
		retryable = r.IsRetryable()
	}

	if !retryable {
		// A permanent HTTP status (401/403/404/410, or a redirect past
		// the limit) is terminal but expected - not DLQ-worthy. Mark the
		// record failed with the classified error as diagnostic and ack.
		if storeErr := w.store.Fail(ctx, msg.URLHash, w.cfg.Owner, fetchErr.Error(), time.Now()); storeErr != nil {
			return "", &CrawlError{Message: fmt.Sprintf("crawler: fail: %v", storeErr), Retryable: true}
		}
		if err := w.crawlQueue.Ack(ctx, env.ReceiptHandle); err != nil {
			return "", &CrawlError{Message: fmt.Sprintf("crawler: ack (permanent failure): %v", err), Retryable: true}
		}
		return OutcomeFailedPermanently, nil
	}

	rec, storeErr := w.store.ScheduleRetry(ctx, msg.URLHash, w.cfg.Owner, w.cfg.MaxAttempts, fetchErr.Error())
	if storeErr != nil {
		return "", &CrawlError{Message: fmt.Sprintf("crawler: schedule retry: %v", storeErr), Retryable: true}
	}

	if rec.State == statestore.StateFailed {
		_ = w.crawlQueue.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonRetriesExhausted)
		return OutcomeDeadLettered, nil
	}

	// Leave the message in flight: its native visibility timeout expiry
	// redelivers it, the queue's own ReceiveCount bookkeeping is the
	// message-level retry cadence layered on top of the state store's
	// URL-level attempt count.
	return OutcomeRetryScheduled, nil
}

// routeOutlinks extracts anchors from the fetched body and enqueues
// same-domain links directly to the crawl queue (normalized, hashed,
// idempotently inserted as pending) and cross-domain links as one
// discovery message per distinct domain.
func (w *Worker) routeOutlinks(ctx context.Context, msg queue.CrawlMessage, pageURL url.URL, result fetcher.FetchResult) error {
	if msg.Depth >= w.cfg.MaxCrawlDepth {
		return nil
	}

	links := extractOutlinks(pageURL, result.Body())
	if len(links) == 0 {
		return nil
	}

	var crawlBatch []queue.CrawlMessage
	crossDomainSeen := make(map[string]struct{})

	for _, link := range links {
		canonical, hash, err := w.normalizer.NormalizeAndHash(link)
		if err != nil {
			continue
		}
		domain := urlnorm.RegistrableDomain(canonical.Hostname())
		if domain == "" {
			continue
		}

		if domain == msg.Domain {
			acquireResult, _, storeErr := w.store.TryAcquire(ctx, hash, "crawler-discovery", 0, statestore.URLRecord{
				URL: canonical.String(), Domain: domain, URLHash: hash, State: statestore.StatePending,
			})
			if storeErr != nil || acquireResult != statestore.Acquired {
				continue
			}
			crawlBatch = append(crawlBatch, queue.NewCrawlMessage(hash, canonical.String(), domain, msg.Depth+1))
			continue
		}

		if _, seen := crossDomainSeen[domain]; seen {
			continue
		}
		crossDomainSeen[domain] = struct{}{}
		if err := w.discoveryQueue.Send(ctx, queue.NewDiscoveryMessage(domain, canonical.String())); err != nil {
			return err
		}
	}

	if len(crawlBatch) > 0 {
		return w.crawlQueue.SendBatch(ctx, crawlBatch)
	}
	return nil
}

func encodeMeta(meta objectstore.Meta) ([]byte, error) {
	return json.Marshal(meta)
}
