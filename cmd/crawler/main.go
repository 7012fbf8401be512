// Command crawler runs the fetch worker: it consumes crawl messages,
// fetches each URL under the rate/politeness gate, persists the raw
// bytes, routes outlinks, and enqueues an index message for every page
// fetched.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlcore/internal/appconfig"
	"github.com/rohmanhakim/crawlcore/internal/build"
	"github.com/rohmanhakim/crawlcore/internal/crawler"
	"github.com/rohmanhakim/crawlcore/internal/fetcher"
	"github.com/rohmanhakim/crawlcore/internal/gate"
	"github.com/rohmanhakim/crawlcore/internal/gate/rediscache"
	"github.com/rohmanhakim/crawlcore/internal/metadata"
	"github.com/rohmanhakim/crawlcore/internal/objectstore/s3store"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/queue/sqsqueue"
	"github.com/rohmanhakim/crawlcore/internal/robots"
	"github.com/rohmanhakim/crawlcore/internal/runloop"
	"github.com/rohmanhakim/crawlcore/internal/statestore/dynamo"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
	"github.com/rohmanhakim/crawlcore/internal/urlnorm"
	"github.com/rohmanhakim/crawlcore/pkg/retry"
	"github.com/rohmanhakim/crawlcore/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("crawler: load config: %v", err)
	}

	logger, err := telemetry.NewProductionLogger()
	if err != nil {
		log.Fatalf("crawler: build logger: %v", err)
	}
	defer logger.Sync()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("crawler: load AWS config", zap.Error(err))
		return
	}

	store := dynamo.NewClient(dynamodb.NewFromConfig(awsCfg), cfg.StateStoreTable)
	rawStore := s3store.New(s3.NewFromConfig(awsCfg), cfg.RawBucket)

	crawlQueue := sqsqueue.New[queue.CrawlMessage](sqs.NewFromConfig(awsCfg), cfg.CrawlQueueURL, "")
	discoveryQueue := sqsqueue.New[queue.DiscoveryMessage](sqs.NewFromConfig(awsCfg), cfg.DiscoveryQueueURL, "")
	indexQueue := sqsqueue.New[queue.IndexMessage](sqs.NewFromConfig(awsCfg), cfg.IndexQueueURL, "")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	robotsCache := rediscache.NewRedisCache(redisClient, cfg.RobotsCacheTTL)
	robotsFetcher := robots.NewRobotsFetcher(metadata.NewRecorder("crawler"), cfg.UserAgent, robotsCache)
	g := gate.NewRedisGate(robotsFetcher, redisClient, gate.Config{
		UserAgent:  cfg.UserAgent,
		DefaultQPS: cfg.DefaultQPS,
	})

	owner := cfg.Owner + "-" + uuid.NewString()

	workerCfg := crawler.Config{
		Owner:             owner,
		UserAgent:         cfg.UserAgent,
		LeaseTTL:          cfg.LeaseTTL,
		LeaseRenewEvery:   cfg.LeaseRenewEvery,
		MaxAttempts:       cfg.MaxAttempts,
		VisibilityTimeout: cfg.CrawlVisibilityTimeout,
		MaxCrawlDepth:     cfg.MaxCrawlDepth,
	}

	retryParam := retry.NewRetryParam(
		cfg.BaseDelay,
		cfg.Jitter,
		cfg.RandomSeed,
		cfg.MaxAttempts,
		timeutil.NewBackoffParam(cfg.BackoffInitial, cfg.BackoffMultiplier, cfg.BackoffMax),
	)

	htmlFetcher := fetcher.NewHtmlFetcher(metadata.NewRecorder("crawler"))
	worker := crawler.NewWorker(
		workerCfg,
		store,
		g,
		&htmlFetcher,
		urlnorm.NewDefaultNormalizer(),
		rawStore,
		crawlQueue,
		discoveryQueue,
		indexQueue,
		retryParam,
	)

	logger.Info("crawler: starting", zap.String("owner", owner), zap.String("version", build.FullVersion()))
	err = runloop.Run(ctx, crawlQueue, logger, runloop.Options{
		Concurrency:       cfg.Concurrency,
		VisibilityTimeout: cfg.CrawlVisibilityTimeout,
		ShutdownGrace:     cfg.LeaseTTL + 30*time.Second,
	}, func(ctx context.Context, env queue.Envelope[queue.CrawlMessage]) error {
		_, procErr := worker.ProcessMessage(ctx, env)
		return procErr
	})
	if err != nil {
		logger.Error("crawler: run loop exited with error", zap.Error(err))
	}
	logger.Info("crawler: stopped")
}
