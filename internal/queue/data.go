package queue

import "time"

/*
Responsibilities

- Define the three wire message shapes the pipeline stages hand off
  between each other (discovery -> crawl -> index)
- Carry a schema version on every message so a consumer can reject or
  adapt to a shape it doesn't understand
- Model dead-letter routing with a structured reason, not free text

Messages are plain JSON-tagged structs; adapters (SQS, in-memory) never
interpret their contents, only their envelope (receipt handle, visibility,
approximate depth).
*/

const currentSchemaVersion = 1

// DiscoveryMessage asks the discovery coordinator to enumerate a domain.
type DiscoveryMessage struct {
	V         int       `json:"v"`
	Domain    string    `json:"domain"`
	SeedURL   string    `json:"seed_url,omitempty"`
	Requested time.Time `json:"requested_at"`
}

// CrawlMessage asks a crawler worker to fetch a single URL.
type CrawlMessage struct {
	V        int    `json:"v"`
	URLHash  string `json:"url_hash"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Depth    int    `json:"depth"`
	FromSitemap bool `json:"from_sitemap,omitempty"`
}

// IndexMessage asks an indexer worker to embed and ingest a fetched page.
type IndexMessage struct {
	V          int    `json:"v"`
	URLHash    string `json:"url_hash"`
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	RawKey     string `json:"raw_key"`
	ParsedKey  string `json:"parsed_key,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

func NewDiscoveryMessage(domain, seedURL string) DiscoveryMessage {
	return DiscoveryMessage{V: currentSchemaVersion, Domain: domain, SeedURL: seedURL, Requested: time.Now()}
}

func NewCrawlMessage(urlHash, url, domain string, depth int) CrawlMessage {
	return CrawlMessage{V: currentSchemaVersion, URLHash: urlHash, URL: url, Domain: domain, Depth: depth}
}

func NewIndexMessage(urlHash, url, domain, rawKey string, fetchedAt time.Time) IndexMessage {
	return IndexMessage{V: currentSchemaVersion, URLHash: urlHash, URL: url, Domain: domain, RawKey: rawKey, FetchedAt: fetchedAt}
}

// DeadLetterReason classifies why a message was routed to its DLQ,
// mirroring the error taxonomy so an operator can triage without
// re-deriving cause from free text.
type DeadLetterReason string

const (
	// DeadLetterReasonPermanentFetchFailure marks a non-retryable fetch
	// failure at a boundary that has no terminal-without-DLQ state of
	// its own to fall back to (the discovery coordinator's sitemap
	// fetch; the crawler's own permanent HTTP outcomes go straight to
	// failed+ack instead, see internal/crawler).
	DeadLetterReasonPermanentFetchFailure DeadLetterReason = "permanent_fetch_failure"
	DeadLetterReasonCorruptPayload        DeadLetterReason = "corrupt_payload"
	DeadLetterReasonRetriesExhausted      DeadLetterReason = "retries_exhausted"
	DeadLetterReasonDownstreamOutage      DeadLetterReason = "downstream_outage"
	DeadLetterReasonUnknownSchema         DeadLetterReason = "unknown_schema_version"
)

// Envelope wraps a delivered message with the handle needed to
// acknowledge, extend visibility, or dead-letter it.
type Envelope[T any] struct {
	Body          T
	ReceiptHandle string
	ReceiveCount  int
}

// Depth reports an approximate queue depth, used by the discovery
// coordinator's backpressure check (SPEC_FULL 4.D).
type Depth struct {
	ApproxMessages int
}
