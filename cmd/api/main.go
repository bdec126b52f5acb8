package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jobstream-labs/jobstream/internal/api"
	"github.com/jobstream-labs/jobstream/internal/embed"
	"github.com/jobstream-labs/jobstream/internal/pipeline"
	"github.com/jobstream-labs/jobstream/internal/search"
	searchcache "github.com/jobstream-labs/jobstream/internal/search/cache"
	"github.com/jobstream-labs/jobstream/internal/store"
	"github.com/jobstream-labs/jobstream/internal/vector"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/health"
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
	slog.Info("starting api service", "port", cfg.Server.Port)

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

	var queryCache *searchcache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = searchcache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var composerCache search.QueryCache
	var cacheAdmin api.CacheAdmin
	if queryCache != nil {
		composerCache = queryCache
		cacheAdmin = queryCache
	}
	composer := search.NewComposer(recordStore, index, embedder, composerCache, cfg.Search, m)
	pl := pipeline.New(recordStore, index, embedder, cfg.Pipeline, m)
	if queryCache != nil {
		pl.SetInvalidator(queryCache)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := recordStore.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("chroma", func(ctx context.Context) health.ComponentHealth {
		if err := index.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("embedding", func(ctx context.Context) health.ComponentHealth {
		if err := embedder.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := api.NewHandler(recordStore, composer, pl, index, cacheAdmin, cfg.Search.MetadataCutoff)
	router := api.NewRouter(h, checker, m, cfg.Server.WriteTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("api service stopped")
}
