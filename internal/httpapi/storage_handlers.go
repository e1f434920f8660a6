package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/storage"
)

// uploadAvatar accepts a multipart form with a "file" part and stores it
// under the caller's user id. The response carries the public asset URL.
func (a *API) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if a.avatars == nil {
		writeError(w, r, http.StatusServiceUnavailable, "avatar storage disabled")
		return
	}

	if err := r.ParseMultipartForm(6 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	name, err := a.avatars.Save(userID, header.Filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFormat) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "upload failed")
		return
	}

	a.audit(r.Context(), "avatar.upload", map[string]any{"object": name})
	writeJSON(w, http.StatusCreated, map[string]any{
		"object": name,
		"url":    "/assets/avatars/" + name,
	})
}

func (a *API) serveAvatar(w http.ResponseWriter, r *http.Request) {
	if a.avatars == nil {
		writeError(w, r, http.StatusServiceUnavailable, "avatar storage disabled")
		return
	}
	name := chi.URLParam(r, "name")
	rc, err := a.avatars.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "object not found")
		case errors.Is(err, storage.ErrInvalidObjectName):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, rc)
}
