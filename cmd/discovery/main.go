// Command discovery runs the domain-discovery worker: it consumes
// discovery messages, enumerates each domain's sitemap(s), and admits
// newly discovered URLs onto the crawl queue.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlcore/internal/appconfig"
	"github.com/rohmanhakim/crawlcore/internal/build"
	"github.com/rohmanhakim/crawlcore/internal/discovery"
	"github.com/rohmanhakim/crawlcore/internal/gate"
	"github.com/rohmanhakim/crawlcore/internal/gate/rediscache"
	"github.com/rohmanhakim/crawlcore/internal/metadata"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/queue/sqsqueue"
	"github.com/rohmanhakim/crawlcore/internal/robots"
	"github.com/rohmanhakim/crawlcore/internal/runloop"
	"github.com/rohmanhakim/crawlcore/internal/statestore/dynamo"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
	"github.com/rohmanhakim/crawlcore/internal/urlnorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("discovery: load config: %v", err)
	}

	logger, err := telemetry.NewProductionLogger()
	if err != nil {
		log.Fatalf("discovery: build logger: %v", err)
	}
	defer logger.Sync()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("discovery: load AWS config", zap.Error(err))
		return
	}

	store := dynamo.NewClient(dynamodb.NewFromConfig(awsCfg), cfg.StateStoreTable)

	discoveryQueue := sqsqueue.New[queue.DiscoveryMessage](sqs.NewFromConfig(awsCfg), cfg.DiscoveryQueueURL, "")
	crawlQueue := sqsqueue.New[queue.CrawlMessage](sqs.NewFromConfig(awsCfg), cfg.CrawlQueueURL, "")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	robotsCache := rediscache.NewRedisCache(redisClient, cfg.RobotsCacheTTL)
	robotsFetcher := robots.NewRobotsFetcher(metadata.NewRecorder("discovery"), cfg.UserAgent, robotsCache)
	g := gate.NewRedisGate(robotsFetcher, redisClient, gate.Config{
		UserAgent:  cfg.UserAgent,
		DefaultQPS: cfg.DefaultQPS,
	})

	coord := discovery.NewCoordinator(g, urlnorm.NewDefaultNormalizer(), store, crawlQueue, 0)

	logger.Info("discovery: starting", zap.String("version", build.FullVersion()))
	err = runloop.Run(ctx, discoveryQueue, logger, runloop.Options{
		Concurrency:       cfg.Concurrency,
		VisibilityTimeout: cfg.DiscoveryVisibilityTimeout,
		ShutdownGrace:     30 * time.Second,
	}, func(ctx context.Context, env queue.Envelope[queue.DiscoveryMessage]) error {
		return processDiscoveryMessage(ctx, coord, discoveryQueue, env)
	})
	if err != nil {
		logger.Error("discovery: run loop exited with error", zap.Error(err))
	}
	logger.Info("discovery: stopped")
}

// processDiscoveryMessage drives one discovery delivery's Ack/defer/
// dead-letter decision: discovery.Coordinator only enumerates and admits
// URLs, it never touches the queue envelope itself.
func processDiscoveryMessage(ctx context.Context, coord *discovery.Coordinator, q queue.Queue[queue.DiscoveryMessage], env queue.Envelope[queue.DiscoveryMessage]) error {
	_, discErr := coord.ProcessDomain(ctx, env.Body)
	if discErr == nil {
		return q.Ack(ctx, env.ReceiptHandle)
	}
	if discErr == discovery.ErrBackpressure {
		return q.ExtendVisibility(ctx, env.ReceiptHandle, 30*time.Second)
	}
	if !discErr.IsRetryable() {
		return q.DeadLetter(ctx, env.ReceiptHandle, queue.DeadLetterReasonPermanentFetchFailure)
	}
	// Retryable: leave in flight for the queue's native redrive.
	return nil
}
