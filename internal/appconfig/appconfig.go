package appconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

/*
Config is the fleet-wide worker configuration, loaded from the process
environment instead of the teacher's single JSON config file: the core
now runs as many independently-scaled crawler/indexer processes with no
single config file argument to point at. The same grouped-field shape
and doc-comment density as the teacher's config.Config is kept; only the
loading mechanism changed.
*/
type Config struct {
	//===============
	// Worker identity
	//===============
	// Owner is this process's lease-owner identity prefix. It is combined
	// with a generated suffix at startup so concurrent replicas sharing
	// the same env var never believe they hold the same URL's lease.
	Owner string `env:"CRAWLCORE_OWNER" envDefault:"crawlcore-worker"`
	// UserAgent is sent on every fetch.
	UserAgent string `env:"CRAWLCORE_USER_AGENT" envDefault:"crawlcore/1.0" validate:"required"`

	//===============
	// Limits
	//===============
	// MaxCrawlDepth bounds how many hyperlink hops from a seed a worker
	// will still enqueue outlinks for.
	MaxCrawlDepth int `env:"CRAWLCORE_MAX_CRAWL_DEPTH" envDefault:"10" validate:"gte=0"`
	// Concurrency is how many in-flight crawl/index message slots a
	// single worker process runs.
	Concurrency int `env:"CRAWLCORE_CONCURRENCY" envDefault:"8" validate:"gte=1"`

	//===============
	// Lease & retry
	//===============
	LeaseTTL          time.Duration `env:"CRAWLCORE_LEASE_TTL" envDefault:"2m" validate:"gt=0"`
	LeaseRenewEvery   time.Duration `env:"CRAWLCORE_LEASE_RENEW_EVERY" envDefault:"30s" validate:"gt=0"`
	MaxAttempts       int           `env:"CRAWLCORE_MAX_ATTEMPTS" envDefault:"5" validate:"gte=1"`
	BaseDelay         time.Duration `env:"CRAWLCORE_BASE_DELAY" envDefault:"500ms" validate:"gt=0"`
	Jitter            time.Duration `env:"CRAWLCORE_JITTER" envDefault:"250ms" validate:"gte=0"`
	RandomSeed        int64         `env:"CRAWLCORE_RANDOM_SEED" envDefault:"1"`
	BackoffInitial    time.Duration `env:"CRAWLCORE_BACKOFF_INITIAL" envDefault:"1s" validate:"gt=0"`
	BackoffMultiplier float64       `env:"CRAWLCORE_BACKOFF_MULTIPLIER" envDefault:"2.0" validate:"gt=1"`
	BackoffMax        time.Duration `env:"CRAWLCORE_BACKOFF_MAX" envDefault:"5m" validate:"gt=0"`

	//===============
	// Queue visibility timeouts (§6 - named constants, not magic numbers)
	//===============
	DiscoveryVisibilityTimeout time.Duration `env:"CRAWLCORE_DISCOVERY_VISIBILITY_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	CrawlVisibilityTimeout     time.Duration `env:"CRAWLCORE_CRAWL_VISIBILITY_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	IndexVisibilityTimeout     time.Duration `env:"CRAWLCORE_INDEX_VISIBILITY_TIMEOUT" envDefault:"120s" validate:"gt=0"`
	MaxReceiveCount            int           `env:"CRAWLCORE_MAX_RECEIVE_COUNT" envDefault:"5" validate:"gte=1"`

	//===============
	// State store (DynamoDB)
	//===============
	StateStoreTable string `env:"CRAWLCORE_STATE_STORE_TABLE" envDefault:"url-records" validate:"required"`

	//===============
	// Object storage (S3)
	//===============
	RawBucket    string `env:"CRAWLCORE_RAW_BUCKET" validate:"required"`
	ParsedBucket string `env:"CRAWLCORE_PARSED_BUCKET" validate:"required"`

	//===============
	// Queues (SQS URLs)
	//===============
	DiscoveryQueueURL string `env:"CRAWLCORE_DISCOVERY_QUEUE_URL" validate:"required"`
	CrawlQueueURL     string `env:"CRAWLCORE_CRAWL_QUEUE_URL" validate:"required"`
	IndexQueueURL     string `env:"CRAWLCORE_INDEX_QUEUE_URL" validate:"required"`

	//===============
	// Rate / politeness gate (Redis)
	//===============
	RedisAddr   string `env:"CRAWLCORE_REDIS_ADDR" validate:"required"`
	DefaultQPS  float64 `env:"CRAWLCORE_DEFAULT_QPS" envDefault:"1.0" validate:"gt=0"`
	RobotsCacheTTL time.Duration `env:"CRAWLCORE_ROBOTS_CACHE_TTL" envDefault:"24h" validate:"gt=0"`

	//===============
	// Embedding
	//===============
	EnableEmbeddings bool   `env:"CRAWLCORE_ENABLE_EMBEDDINGS" envDefault:"true"`
	OpenAIAPIKey     string `env:"CRAWLCORE_OPENAI_API_KEY"`
	EmbeddingModel   string `env:"CRAWLCORE_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimension int  `env:"CRAWLCORE_EMBEDDING_DIMENSION" envDefault:"1536" validate:"gt=0"`
	EmbeddingBatchSize int  `env:"CRAWLCORE_EMBEDDING_BATCH_SIZE" envDefault:"16" validate:"gte=1"`

	//===============
	// Chunking
	//===============
	ChunkMaxTokens int `env:"CRAWLCORE_CHUNK_MAX_TOKENS" envDefault:"400" validate:"gt=0"`
	ChunkOverlap   int `env:"CRAWLCORE_CHUNK_OVERLAP" envDefault:"40" validate:"gte=0"`

	//===============
	// Search index (Postgres + pgvector)
	//===============
	PostgresDSN string `env:"CRAWLCORE_POSTGRES_DSN" validate:"required"`

	//===============
	// Circuit breaker
	//===============
	BreakerMaxFailures uint32        `env:"CRAWLCORE_BREAKER_MAX_FAILURES" envDefault:"5" validate:"gte=1"`
	BreakerTimeout     time.Duration `env:"CRAWLCORE_BREAKER_TIMEOUT" envDefault:"30s" validate:"gt=0"`
}

// Load reads Config from the process environment and validates it.
// Validation errors are returned verbatim (go-playground/validator's
// field-level messages are already operator-readable).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("appconfig: parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("appconfig: validate: %w", err)
	}

	return cfg, nil
}
