package api

import (
	"net/http"

	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

// Search runs a contextual search for the user and appends the query to
// their search log. A failed log write does not fail the search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	result, err := h.searcher.Search(r.Context(), userID, query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.store.AddSearch(r.Context(), userID, query, result.IDs); err != nil {
		h.logger.Error("search log write failed", "user_id", userID, "error", err)
	}

	h.writeJSON(w, http.StatusOK, result)
}

type clickRequest struct {
	JobID string `json:"job_id"`
}

// AddClick records that the user opened a posting from a result list.
func (h *Handler) AddClick(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	var req clickRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.JobID == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "job_id is required"))
		return
	}
	if _, err := h.store.GetPosting(r.Context(), req.JobID); err != nil {
		h.writeError(w, err)
		return
	}

	click, err := h.store.AddClick(r.Context(), userID, req.JobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, click)
}

func (h *Handler) ListSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := h.store.ListSearches(r.Context(), r.PathValue("user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, searches)
}

func (h *Handler) ListClicks(w http.ResponseWriter, r *http.Request) {
	clicks, err := h.store.ListClicks(r.Context(), r.PathValue("user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, clicks)
}
