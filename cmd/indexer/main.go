// Command indexer runs the embedding/ingest worker: it consumes index
// messages, extracts and chunks the fetched page, embeds each chunk, and
// bulk-upserts the result into the vector/text search index.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlcore/internal/appconfig"
	"github.com/rohmanhakim/crawlcore/internal/build"
	"github.com/rohmanhakim/crawlcore/internal/embedding"
	"github.com/rohmanhakim/crawlcore/internal/indexer"
	"github.com/rohmanhakim/crawlcore/internal/objectstore/s3store"
	"github.com/rohmanhakim/crawlcore/internal/queue"
	"github.com/rohmanhakim/crawlcore/internal/queue/sqsqueue"
	"github.com/rohmanhakim/crawlcore/internal/runloop"
	"github.com/rohmanhakim/crawlcore/internal/searchindex/pgvector"
	"github.com/rohmanhakim/crawlcore/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("indexer: load config: %v", err)
	}

	logger, err := telemetry.NewProductionLogger()
	if err != nil {
		log.Fatalf("indexer: build logger: %v", err)
	}
	defer logger.Sync()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("indexer: load AWS config", zap.Error(err))
		return
	}

	rawStore := s3store.New(s3.NewFromConfig(awsCfg), cfg.RawBucket)
	indexQueue := sqsqueue.New[queue.IndexMessage](sqs.NewFromConfig(awsCfg), cfg.IndexQueueURL, "")

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("indexer: connect postgres", zap.Error(err))
		return
	}
	defer pool.Close()
	index := pgvector.New(pool)

	var embedder embedding.Client
	if cfg.EnableEmbeddings {
		embedder = embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingBatchSize)
	}

	worker := indexer.NewWorker(
		indexer.Config{
			EnableEmbeddings:   cfg.EnableEmbeddings,
			ChunkMaxTokens:     cfg.ChunkMaxTokens,
			ChunkOverlap:       cfg.ChunkOverlap,
			BreakerMaxFailures: cfg.BreakerMaxFailures,
			BreakerTimeout:     cfg.BreakerTimeout,
		},
		rawStore,
		indexQueue,
		embedder,
		index,
		logger,
	)

	if cfg.EnableEmbeddings {
		if err := worker.EnsureSchema(ctx); err != nil {
			logger.Error("indexer: ensure schema", zap.Error(err))
			return
		}
	}

	logger.Info("indexer: starting", zap.String("version", build.FullVersion()))
	err = runloop.Run(ctx, indexQueue, logger, runloop.Options{
		Concurrency:       cfg.Concurrency,
		VisibilityTimeout: cfg.IndexVisibilityTimeout,
		ShutdownGrace:     cfg.BreakerTimeout + 30*time.Second,
	}, func(ctx context.Context, env queue.Envelope[queue.IndexMessage]) error {
		_, procErr := worker.ProcessMessage(ctx, env)
		return procErr
	})
	if err != nil {
		logger.Error("indexer: run loop exited with error", zap.Error(err))
	}
	logger.Info("indexer: stopped")
}
