package objectstore

import (
	"context"
	"fmt"
	"time"
)

/*
Responsibilities

- Store raw fetched bytes and parsed/extracted text at content-addressable
  keys so the crawler and indexer never coordinate a filename out of band
- Key layout: {domain}/{YYYY}/{MM}/{DD}/{url_hash}.html plus a sibling
  {url_hash}.meta.json sidecar, exactly per spec's external interfaces

Two buckets exist in principle (raw, parsed); this port is bucket-scoped,
so callers hold one ObjectStore per bucket.
*/

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Meta is the sidecar JSON stored alongside raw bytes.
type Meta struct {
	URL         string    `json:"url"`
	URLHash     string    `json:"url_hash"`
	Domain      string    `json:"domain"`
	FetchedAt   time.Time `json:"fetched_at"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	SizeBytes   int       `json:"size_bytes"`
}

// RawKey builds the content-addressable key for a raw page body.
func RawKey(domain string, fetchedAt time.Time, urlHash string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.html", domain, fetchedAt.Year(), fetchedAt.Month(), fetchedAt.Day(), urlHash)
}

// MetaKey builds the sidecar key for a raw page's metadata.
func MetaKey(domain string, fetchedAt time.Time, urlHash string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.meta.json", domain, fetchedAt.Year(), fetchedAt.Month(), fetchedAt.Day(), urlHash)
}

// ParsedKey builds the key for extracted/parsed text under the parsed bucket.
func ParsedKey(domain string, fetchedAt time.Time, urlHash string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.txt", domain, fetchedAt.Year(), fetchedAt.Month(), fetchedAt.Day(), urlHash)
}
