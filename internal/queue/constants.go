package queue

import "time"

// Visibility timeouts and redrive thresholds per queue, named so no
// caller reaches for a magic number.
const (
	DiscoveryVisibilityTimeout = 60 * time.Second
	CrawlVisibilityTimeout     = 60 * time.Second
	IndexVisibilityTimeout     = 120 * time.Second

	MaxReceiveCount = 5
)
