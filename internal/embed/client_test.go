package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

func newTestServer(t *testing.T, dim int, capture *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if capture != nil {
			*capture = append(*capture, req.Input)
		}

		type datum struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		// Return vectors in reverse order to exercise index-based reassembly.
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dim)
			vec[0] = float64(i)
			resp.Data = append(resp.Data, datum{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(url string, dim int) *Client {
	return NewClient(config.EmbeddingConfig{
		BaseURL:   url,
		Model:     "test-model",
		Timeout:   5 * time.Second,
		Dimension: dim,
	}, nil)
}

func TestEmbedRecordsPreservesOrder(t *testing.T) {
	srv := newTestServer(t, 4, nil)
	defer srv.Close()

	client := testClient(srv.URL, 4)
	postings := []model.Posting{
		{UUID: "a", Title: "first"},
		{UUID: "b", Title: "second"},
		{UUID: "c", Title: "third"},
	}

	vectors, err := client.EmbedRecords(context.Background(), postings)
	if err != nil {
		t.Fatalf("EmbedRecords: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, vec := range vectors {
		if vec[0] != float32(i) {
			t.Errorf("vector %d out of order: marker %v", i, vec[0])
		}
	}
}

func TestEmbedRecordSendsFlatText(t *testing.T) {
	var inputs [][]string
	srv := newTestServer(t, 4, &inputs)
	defer srv.Close()

	client := testClient(srv.URL, 4)
	posting := model.Posting{Source: "indeed", Title: "Engineer", Link: "https://example.com/1"}
	if _, err := client.EmbedRecord(context.Background(), posting); err != nil {
		t.Fatalf("EmbedRecord: %v", err)
	}
	if len(inputs) != 1 || len(inputs[0]) != 1 {
		t.Fatalf("expected one request with one input, got %v", inputs)
	}
	if inputs[0][0] != posting.FlatText() {
		t.Errorf("sent %q, want flattened record text %q", inputs[0][0], posting.FlatText())
	}
}

func TestEmbedTextDimensionMismatch(t *testing.T) {
	srv := newTestServer(t, 4, nil)
	defer srv.Close()

	client := testClient(srv.URL, 8)
	_, err := client.EmbedText(context.Background(), "query")
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}

func TestEmbedRecordsEmptyBatch(t *testing.T) {
	client := testClient("http://unused", 4)
	vectors, err := client.EmbedRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedRecords: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty batch, got %v", vectors)
	}
}
