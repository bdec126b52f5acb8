package api

import (
	"net/http"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

func (h *Handler) GetPosting(w http.ResponseWriter, r *http.Request) {
	posting, err := h.store.GetPosting(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, posting)
}

func (h *Handler) ListPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.store.ListPostings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, postings)
}

func (h *Handler) UpdatePosting(w http.ResponseWriter, r *http.Request) {
	var posting model.Posting
	if !h.decodeBody(w, r, &posting) {
		return
	}
	posting.UUID = r.PathValue("id")
	if err := h.store.UpdatePosting(r.Context(), posting); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, posting)
}

func (h *Handler) DeletePosting(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePosting(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// IngestCandidates accepts a batch of scraped candidates directly, the
// synchronous alternative to the Kafka path.
func (h *Handler) IngestCandidates(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusNotImplemented, "ingest is not enabled on this instance"))
		return
	}
	var candidates []model.Candidate
	if !h.decodeBody(w, r, &candidates) {
		return
	}
	res, err := h.pipeline.IngestBatch(r.Context(), candidates)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"ingested":   res.Ingested,
		"duplicates": res.Duplicates,
		"rejected":   res.Rejected,
	})
}
