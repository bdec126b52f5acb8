// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Chroma, Embedding, Pipeline,
// Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Chroma    ChromaConfig    `yaml:"chroma"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Search    SearchConfig    `yaml:"search"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the record store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Candidates string `yaml:"candidates"`
}

// ChromaConfig holds the vector index connection parameters. Dimension must
// match the embedding server's output dimension.
type ChromaConfig struct {
	URL        string `yaml:"url"`
	Tenant     string `yaml:"tenant"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
}

// EmbeddingConfig holds the embedding server client settings.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"apiKeyEnv"`
	Timeout   time.Duration `yaml:"timeout"`
	Dimension int           `yaml:"dimension"`
}

// PipelineConfig controls the synchronization and retention cycle.
type PipelineConfig struct {
	IntervalHours    int `yaml:"intervalHours"`    // how often the cron cycle fires
	RetentionDays    int `yaml:"retentionDays"`    // postings older than this are evicted
	EmbedConcurrency int `yaml:"embedConcurrency"` // fan-out bound for embedding during propagation
	ConsumerBatch    int `yaml:"consumerBatch"`    // candidates buffered before a batch ingest
}

// SearchConfig controls the contextual search composer.
type SearchConfig struct {
	DefaultK       int `yaml:"defaultK"`       // nearest neighbours returned
	HistoryLimit   int `yaml:"historyLimit"`   // recent searches/clicks folded into context
	DescTruncation int `yaml:"descTruncation"` // clicked-description truncation; negative = none
	MetadataCutoff int `yaml:"metadataCutoff"` // per-user interaction rows kept by the scrub
}

// ScraperConfig controls the scraping service.
type ScraperConfig struct {
	Sources        []string      `yaml:"sources"`
	MaxJobs        int           `yaml:"maxJobs"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	Backoff        time.Duration `yaml:"backoff"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"` // wall-clock bound per scrape attempt; 0 = unbounded
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if cfg.Chroma.Dimension != cfg.Embedding.Dimension {
		return nil, fmt.Errorf("chroma dimension %d does not match embedding dimension %d",
			cfg.Chroma.Dimension, cfg.Embedding.Dimension)
	}
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "jobstream",
			User:            "jobstream",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "jobstream-pipeline",
			Topics: KafkaTopics{
				Candidates: "scraped-candidates",
			},
		},
		Chroma: ChromaConfig{
			URL:        "http://localhost:8000",
			Collection: "job_embeddings",
			Dimension:  768,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:8100/v1",
			Model:     "all-mpnet-base-v2",
			APIKeyEnv: "EMBEDDING_API_KEY",
			Timeout:   30 * time.Second,
			Dimension: 768,
		},
		Pipeline: PipelineConfig{
			IntervalHours:    6,
			RetentionDays:    30,
			EmbedConcurrency: 8,
			ConsumerBatch:    100,
		},
		Search: SearchConfig{
			DefaultK:       10,
			HistoryLimit:   5,
			DescTruncation: -1,
			MetadataCutoff: 10,
		},
		Scraper: ScraperConfig{
			Sources:        []string{"indeed", "linkedin"},
			MaxJobs:        25,
			MaxAttempts:    3,
			Backoff:        10 * time.Second,
			AttemptTimeout: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads JS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("JS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("JS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("JS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("JS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("JS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("JS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JS_CHROMA_URL"); v != "" {
		cfg.Chroma.URL = v
	}
	if v := os.Getenv("JS_CHROMA_COLLECTION"); v != "" {
		cfg.Chroma.Collection = v
	}
	if v := os.Getenv("JS_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("JS_PIPELINE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.RetentionDays = days
		}
	}
	if v := os.Getenv("JS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
