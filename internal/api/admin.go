package api

import (
	"fmt"
	"net/http"

	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

// RunCycle triggers a full synchronization cycle out of schedule.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.RunCycle(r.Context()); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError,
			fmt.Sprintf("cycle finished with errors: %v", err)))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cycle complete"})
}

// RunPropagate pushes un-indexed postings into the vector index.
func (h *Handler) RunPropagate(w http.ResponseWriter, r *http.Request) {
	upserted, err := h.pipeline.Propagate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"upserted": upserted})
}

// RunScrub evicts expired postings from both stores.
func (h *Handler) RunScrub(w http.ResponseWriter, r *http.Request) {
	evicted, err := h.pipeline.Scrub(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}

// Setup creates the store schema and the vector collection, idempotently.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	if err := h.store.EnsureSchema(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.vectors.EnsureCollection(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Counts reports row and vector counts, the quick convergence check: after
// a clean cycle postings == vectors.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	postings, err := h.store.CountPostings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	users, err := h.store.CountUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	vectors, err := h.vectors.Count(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"postings": postings,
		"users":    users,
		"vectors":  vectors,
	})
}

// CacheStats reports query-cache hit rates.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops all cached search results.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.InvalidateAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
