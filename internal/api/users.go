package api

import (
	"net/http"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

// CreateUser registers a new profile. A taken username is a 409, surfaced by
// the store's direct existence check rather than inferred from a fetch of
// the new row.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user model.User
	if !h.decodeBody(w, r, &user) {
		return
	}
	if user.Username == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "username is required"))
		return
	}

	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	created.Password = ""
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	user.Password = ""
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	for i := range users {
		users[i].Password = ""
	}
	h.writeJSON(w, http.StatusOK, users)
}

// UpdateUser replaces the mutable profile fields. Username and creation time
// are immutable; a changed context invalidates the user's cached searches.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var user model.User
	if !h.decodeBody(w, r, &user) {
		return
	}
	user.UserID = r.PathValue("id")

	updated, err := h.store.UpdateUser(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.InvalidateUser(r.Context(), updated.UserID); err != nil {
			h.logger.Error("cache invalidation after profile update failed", "user_id", updated.UserID, "error", err)
		}
	}
	updated.Password = ""
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks a username/password pair. Passwords are stored pre-hashed by
// the client layer; comparison here is equality of hashes.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if user.Password != req.Password {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusUnauthorized, "invalid credentials"))
		return
	}
	user.Password = ""
	h.writeJSON(w, http.StatusOK, user)
}

// ScrubUserMetadata trims the user's interaction logs to the configured
// number of most recent entries.
func (h *Handler) ScrubUserMetadata(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	deleted, err := h.store.ScrubMetadata(r.Context(), userID, h.metadataCutoff)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "cutoff": h.metadataCutoff})
}
