package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/metrics"
	"github.com/jobstream-labs/jobstream/pkg/resilience"
)

var _ Embedder = (*Client)(nil)

// Client calls an OpenAI-compatible /embeddings endpoint. Requests go through
// a circuit breaker with retries, since the embedding server is the flakiest
// dependency in the propagation path.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	dim     int
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient builds a Client from config. The API key is read from the
// environment variable named by cfg.APIKeyEnv; an empty key is allowed for
// unauthenticated local servers. m may be nil.
func NewClient(cfg config.EmbeddingConfig, m *metrics.Metrics) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		model:   cfg.Model,
		dim:     cfg.Dimension,
		breaker: resilience.NewCircuitBreaker("embedding", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  logger.WithComponent("embedder"),
	}
}

// Dimension returns the vector size every embed call produces.
func (c *Client) Dimension() int {
	return c.dim
}

// EmbedText embeds a single free-text string, typically a composed search
// query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedRecord embeds one posting's flattened textual representation.
func (c *Client) EmbedRecord(ctx context.Context, posting model.Posting) ([]float32, error) {
	return c.EmbedText(ctx, posting.FlatText())
}

// EmbedRecords embeds a batch of postings in a single request, preserving
// input order.
func (c *Client) EmbedRecords(ctx context.Context, postings []model.Posting) ([][]float32, error) {
	if len(postings) == 0 {
		return nil, nil
	}
	texts := make([]string, len(postings))
	for i, p := range postings {
		texts[i] = p.FlatText()
	}
	return c.embedBatch(ctx, texts)
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "embed-batch", resilience.RetryConfig{}, func() error {
			var attemptErr error
			vectors, attemptErr = c.doEmbed(ctx, texts)
			return attemptErr
		})
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("embedding").Set(float64(c.breaker.GetState()))
	}
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *Client) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if c.metrics != nil {
		c.metrics.EmbeddingLatency.Observe(time.Since(start).Seconds())
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("embedding server error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding server returned out-of-range index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		if len(vec) != c.dim {
			return nil, apperrors.Newf(apperrors.ErrInternal, 500,
				"embedding has dimension %d, want %d", len(vec), c.dim)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

// Ping checks reachability of the embedding server without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinging embedding server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}
	return nil
}
