package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jobstream-labs/jobstream/internal/embed"
	"github.com/jobstream-labs/jobstream/internal/pipeline"
	searchcache "github.com/jobstream-labs/jobstream/internal/search/cache"
	"github.com/jobstream-labs/jobstream/internal/store"
	"github.com/jobstream-labs/jobstream/internal/vector"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/kafka"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/metrics"
	"github.com/jobstream-labs/jobstream/pkg/postgres"
	pkgredis "github.com/jobstream-labs/jobstream/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting pipeline service",
		"interval_hours", cfg.Pipeline.IntervalHours,
		"retention_days", cfg.Pipeline.RetentionDays,
	)

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	recordStore := store.New(pg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := recordStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	index, err := vector.New(cfg.Chroma)
	if err != nil {
		slog.Error("failed to connect to chroma", "error", err)
		os.Exit(1)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx); err != nil {
		slog.Error("failed to ensure vector collection", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	embedder := embed.NewClient(cfg.Embedding, m)
	pl := pipeline.New(recordStore, index, embedder, cfg.Pipeline, m)

	// Cycles mutate both stores, so cached search results are dropped after
	// each one. Without redis they simply age out on TTL.
	if redisClient, err := pkgredis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, search cache will age out on TTL", "error", err)
	} else {
		defer redisClient.Close()
		pl.SetInvalidator(searchcache.New(redisClient, cfg.Redis))
	}

	batcher := pipeline.NewCandidateBatcher(pl, cfg.Pipeline.ConsumerBatch)
	pl.SetFlusher(batcher)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Candidates, batcher.Handle)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("candidate consumer stopped", "error", err)
		}
	}()

	if err := pl.Schedule(ctx); err != nil {
		slog.Error("cycle scheduler error", "error", err)
	}

	// Drain whatever arrived between the last flush and shutdown.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := batcher.Flush(drainCtx); err != nil {
		slog.Error("final flush failed", "pending", batcher.Pending(), "error", err)
	}
	if shutdownMetrics != nil {
		if err := shutdownMetrics(drainCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("pipeline service stopped")
}
