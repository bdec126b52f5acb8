package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jobstream-labs/jobstream/internal/scraper"
	"github.com/jobstream-labs/jobstream/internal/store"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/kafka"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	query := flag.String("query", "software engineer", "search query to scrape")
	locale := flag.String("locale", "remote", "location filter")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scrape run", "sources", cfg.Scraper.Sources, "query", *query)

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	recordStore := store.New(pg)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Candidates)
	defer producer.Close()
	publisher := scraper.NewKafkaPublisher(producer)

	scrapers := make([]scraper.Scraper, 0, len(cfg.Scraper.Sources))
	for _, source := range cfg.Scraper.Sources {
		switch source {
		case "indeed":
			session := scraper.NewSession(30 * time.Second)
			scrapers = append(scrapers, scraper.NewIndeed("https://www.indeed.com", *query, *locale, session))
		case "linkedin":
			session := scraper.NewSession(30 * time.Second)
			scrapers = append(scrapers, scraper.NewLinkedIn("https://www.linkedin.com", *query, *locale, session))
		default:
			slog.Warn("unknown scrape source skipped", "source", source)
		}
	}
	if len(scrapers) == 0 {
		slog.Error("no usable scrape sources configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := scraper.NewRunner(scrapers, recordStore, publisher, cfg.Scraper)
	if err := runner.Run(ctx); err != nil {
		slog.Error("scrape run finished with errors", "error", err)
		os.Exit(1)
	}

	slog.Info("scrape run complete")
}
