package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"productshot-server/internal/domain"
)

// maxUploadBytes caps one uploaded image at 15 MiB.
const maxUploadBytes = 15 << 20

// Upload accepts a multipart image and stores it under a fresh random name.
// Responds with the public URL the file is served from.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		ext = ".png"
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	url, err := a.Store.Save(r.Context(), name, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("upload: store failed")
		a.error(w, http.StatusInternalServerError, "could not store file")
		return
	}

	a.Logger.Info().Str("name", name).Int("bytes", len(data)).Msg("upload stored")
	a.json(w, http.StatusOK, map[string]string{"url": url, "name": name})
}

// ServeFile returns the stored bytes for a previously uploaded or generated
// image.
func (a *App) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := a.Store.Read(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			a.error(w, http.StatusNotFound, "file not found")
			return
		}
		a.Logger.Error().Err(err).Str("name", name).Msg("files: read failed")
		a.error(w, http.StatusInternalServerError, "could not read file")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
