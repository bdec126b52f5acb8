// Package api exposes the HTTP surface: contextual search, user and posting
// management, interaction logs, and the admin operations that trigger
// pipeline stages out of schedule.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/internal/pipeline"
	"github.com/jobstream-labs/jobstream/internal/search"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/logger"
)

// RecordStore is everything the handlers read and write in the primary
// store.
type RecordStore interface {
	EnsureSchema(ctx context.Context) error

	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, userID string) error
	CountUsers(ctx context.Context) (int, error)

	GetPosting(ctx context.Context, id string) (model.Posting, error)
	ListPostings(ctx context.Context) ([]model.Posting, error)
	UpdatePosting(ctx context.Context, p model.Posting) error
	DeletePosting(ctx context.Context, id string) error
	CountPostings(ctx context.Context) (int, error)

	AddSearch(ctx context.Context, userID, query string, results []string) (model.Search, error)
	AddClick(ctx context.Context, userID, jobID string) (model.Click, error)
	ListSearches(ctx context.Context, userID string) ([]model.Search, error)
	ListClicks(ctx context.Context, userID string) ([]model.Click, error)
	ScrubMetadata(ctx context.Context, userID string, cutoff int) (int, error)
}

// Searcher runs a contextual search for one user.
type Searcher interface {
	Search(ctx context.Context, userID, query string) (search.Result, error)
}

// PipelineRunner exposes the cycle stages for out-of-schedule admin runs.
type PipelineRunner interface {
	RunCycle(ctx context.Context) error
	Propagate(ctx context.Context) (int, error)
	Scrub(ctx context.Context) (int, error)
	IngestBatch(ctx context.Context, candidates []model.Candidate) (pipeline.IngestResult, error)
}

// VectorAdmin covers index setup and inspection.
type VectorAdmin interface {
	EnsureCollection(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// CacheAdmin exposes cache statistics and invalidation. May be absent.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	InvalidateAll(ctx context.Context) error
	InvalidateUser(ctx context.Context, userID string) error
}

// Handler holds the dependencies behind every route.
type Handler struct {
	store          RecordStore
	searcher       Searcher
	pipeline       PipelineRunner
	vectors        VectorAdmin
	cache          CacheAdmin
	metadataCutoff int
	logger         *slog.Logger
}

// NewHandler wires the handler. searcher, pipeline, vectors, and cache may
// be nil when the corresponding routes are not served.
func NewHandler(store RecordStore, searcher Searcher, pl PipelineRunner, vectors VectorAdmin, cache CacheAdmin, metadataCutoff int) *Handler {
	return &Handler{
		store:          store,
		searcher:       searcher,
		pipeline:       pl,
		vectors:        vectors,
		cache:          cache,
		metadataCutoff: metadataCutoff,
		logger:         logger.WithComponent("api"),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps the error taxonomy onto an HTTP status. AppError messages
// are safe for clients; anything else gets a generic body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	if status >= 500 {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed JSON body"))
		return false
	}
	return true
}
