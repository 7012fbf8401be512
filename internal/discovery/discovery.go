package discovery

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rohmanhakim/crawlcore/internal/gate"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/statestore"
	"github.com/rohmanhakim/crawlcore/internal/urlnorm"
)

/*
Responsibilities

- Consume a discovery message for one domain
- Resolve robots and enumerate its sitemap(s), including sitemap-index
  recursion
- Normalize and hash every discovered URL
- Idempotently insert each as a pending state-store record
- Batch-enqueue crawl messages for URLs newly admitted to pending
- Apply backpressure against the crawl queue's approximate depth

Discovery never decides retry/continue/abort for an individual URL -
only the crawler and indexer state machines do that. Discovery's only
failure mode is "come back later" (requeue the whole domain message) or
"this domain is unreachable" (permanent).
*/

const (
	maxURLsPerDomain   = 50_000
	defaultLeaseTTL    = 60 * time.Second
	defaultMaxAttempts = 5
)

type Coordinator struct {
	gate           gate.Gate
	normalizer     urlnorm.Normalizer
	store          statestore.Store
	crawlQueue     queue.Queue[queue.CrawlMessage]
	httpClient     *http.Client
	crawlQueueCeiling int
}

func NewCoordinator(
	g gate.Gate,
	normalizer urlnorm.Normalizer,
	store statestore.Store,
	crawlQueue queue.Queue[queue.CrawlMessage],
	crawlQueueCeiling int,
) *Coordinator {
	return &Coordinator{
		gate:              g,
		normalizer:        normalizer,
		store:             store,
		crawlQueue:        crawlQueue,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		crawlQueueCeiling: crawlQueueCeiling,
	}
}

// ProcessDomain enumerates a domain's sitemap(s), admits newly discovered
// URLs into the state store as pending, and enqueues crawl messages for
// them. It returns ErrBackpressure when the crawl queue is already at or
// above its configured ceiling, signalling the caller to return the discovery
// message to visibility instead of making progress.
func (c *Coordinator) ProcessDomain(ctx context.Context, msg queue.DiscoveryMessage) (int, *DiscoveryError) {
	depth, err := c.crawlQueue.ApproxDepth(ctx)
	if err != nil {
		return 0, &DiscoveryError{Message: err.Error(), Retryable: true}
	}
	if c.crawlQueueCeiling > 0 && depth.ApproxMessages >= c.crawlQueueCeiling {
		return 0, ErrBackpressure
	}

	seed := msg.SeedURL
	if seed == "" {
		seed = "https://" + msg.Domain + "/"
	}
	seedURL, parseErr := url.Parse(seed)
	if parseErr != nil {
		return 0, &DiscoveryError{Message: parseErr.Error(), Retryable: false}
	}

	if c.gate != nil {
		decision, gateErr := c.gate.Evaluate(ctx, *seedURL)
		if gateErr == nil && !decision.Allowed {
			return 0, &DiscoveryError{Message: "discovery: domain disallowed by robots", Retryable: false}
		}
	}

	sitemapURLs, sitemapErr := c.discoverSitemapURLs(ctx, *seedURL)
	if sitemapErr != nil {
		// Fall back to the bare seed URL when sitemap discovery fails
		// entirely - a domain with no sitemap is not itself an error.
		sitemapURLs = []string{seed}
	}

	admitted := 0
	crawlBatch := make([]queue.CrawlMessage, 0, len(sitemapURLs))

	for _, raw := range sitemapURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		canonical, hash, hashErr := c.normalizer.NormalizeAndHash(*parsed)
		if hashErr != nil {
			continue
		}

		// A URL that already has a record, in any state, is skipped
		// without a write. For a new one, TryAcquire with an
		// already-expired lease performs the "insert as pending if
		// absent" the coordinator needs without actually holding a
		// lease: ReclaimExpired (run periodically by the crawler fleet)
		// flips it back to pending on its next sweep.
		if _, getErr := c.store.Get(ctx, hash); getErr == nil {
			continue
		}
		result, _, storeErr := c.store.TryAcquire(ctx, hash, "discovery", 0, newPendingSeed(canonical.String(), msg.Domain, hash))
		if storeErr != nil {
			continue
		}
		if result != statestore.Acquired {
			continue
		}

		crawlBatch = append(crawlBatch, queue.NewCrawlMessage(hash, canonical.String(), msg.Domain, 0))
		admitted++
	}

	if len(crawlBatch) > 0 {
		if err := c.crawlQueue.SendBatch(ctx, crawlBatch); err != nil {
			return admitted, &DiscoveryError{Message: err.Error(), Retryable: true}
		}
	}

	return admitted, nil
}

func newPendingSeed(canonicalURL, domain, urlHash string) statestore.URLRecord {
	return statestore.URLRecord{URL: canonicalURL, Domain: domain, URLHash: urlHash, State: statestore.StatePending}
}

func (c *Coordinator) discoverSitemapURLs(ctx context.Context, seedURL url.URL) ([]string, error) {
	sitemapLocations := []string{
		seedURL.Scheme + "://" + seedURL.Host + "/sitemap.xml",
	}

	var urls []string
	for _, loc := range sitemapLocations {
		if err := fetchSitemapURLs(ctx, c.httpClient, loc, 0, maxURLsPerDomain, &urls); err == nil && len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, ErrNoSitemap
}

var ErrBackpressure = &DiscoveryError{Message: "discovery: crawl queue over ceiling, deferring domain", Retryable: true}
var ErrNoSitemap = &DiscoveryError{Message: "discovery: no sitemap discovered for domain", Retryable: false}
