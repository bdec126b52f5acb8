// Package embed turns postings and free-text queries into fixed-dimension
// vectors via an OpenAI-compatible embeddings endpoint.
package embed

import (
	"context"

	"github.com/jobstream-labs/jobstream/internal/model"
)

// Embedder is the single entry point for producing vectors. EmbedText serves
// query-time embedding, EmbedRecord and EmbedRecords serve the propagation
// path. All three return vectors of the configured dimension.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedRecord(ctx context.Context, posting model.Posting) ([]float32, error)
	EmbedRecords(ctx context.Context, postings []model.Posting) ([][]float32, error)
}
