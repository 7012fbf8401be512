package metadata

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder is the production MetadataSink, backed by a structured zap
// logger. It also keeps a small set of atomic counters so a long-running
// worker can expose a coarse crawlStats summary without re-deriving it
// from log output.
type Recorder struct {
	component string
	logger    *zap.Logger

	fetches int64
	errors  int64
}

// NewRecorder builds a Recorder with its own production zap logger,
// named for component so every line it emits is attributable to the
// package that called it.
func NewRecorder(component string) *Recorder {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewRecorderWithLogger(component, logger)
}

// NewRecorderWithLogger builds a Recorder over a caller-supplied logger,
// for tests and for processes that already own a configured *zap.Logger.
func NewRecorderWithLogger(component string, logger *zap.Logger) *Recorder {
	return &Recorder{component: component, logger: logger}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	atomic.AddInt64(&r.fetches, 1)
	r.logger.Info("fetch",
		zap.String("component", r.component),
		zap.String("url", fetchUrl),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("retry_count", retryCount),
		zap.Int("crawl_depth", crawlDepth),
	)
}

func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	atomic.AddInt64(&r.fetches, 1)
	r.logger.Info("asset_fetch",
		zap.String("component", r.component),
		zap.String("url", fetchUrl),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.Int("retry_count", retryCount),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	atomic.AddInt64(&r.errors, 1)
	fields := make([]zap.Field, 0, len(attrs)+5)
	fields = append(fields,
		zap.String("component", r.component),
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.Int("cause", int(cause)),
	)
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Error(details, fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := make([]zap.Field, 0, len(attrs)+2)
	fields = append(fields, zap.String("component", r.component), zap.String("path", path))
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Info("artifact:"+string(kind), fields...)
}

// Summary returns a point-in-time snapshot of the counters this Recorder
// has accumulated since construction. It is the only read path into
// Recorder state, matching crawlStats' rule that it must be computed
// without reading metadata mid-crawl - callers call Summary once, at the
// end.
func (r *Recorder) Summary() crawlStats {
	return crawlStats{
		totalPages:  int(atomic.LoadInt64(&r.fetches)),
		totalErrors: int(atomic.LoadInt64(&r.errors)),
	}
}
