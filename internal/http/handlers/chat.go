package handlers

import (
	"encoding/json"
	"net/http"

	"productshot-server/internal/domain"
)

type chatRequest struct {
	Message     string `json:"message"`
	ThreadID    string `json:"thread_id"`
	ImageURL    string `json:"image_url"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	NumImages   int    `json:"num_images"`
	UserID      string `json:"user_id"`
	UserEmail   string `json:"user_email"`
}

// Chat runs one turn of the product photography agent. Identity may arrive
// in the body or in X-User-Id / X-User-Email headers; the body wins.
func (a *App) Chat(w http.ResponseWriter, r *http.Request) {
	if a.Agent == nil {
		a.error(w, http.StatusInternalServerError, "chat model is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Message == "" {
		a.error(w, http.StatusBadRequest, "message is required and must be a string")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "default"
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-Id")
	}
	if req.UserEmail == "" {
		req.UserEmail = r.Header.Get("X-User-Email")
	}
	if req.NumImages < 1 || req.NumImages > domain.MaxImagesPerRequest {
		req.NumImages = domain.DefaultNumImages
	}

	turn := domain.TurnContext{
		ThreadID:    req.ThreadID,
		UserID:      req.UserID,
		Email:       req.UserEmail,
		ImageURL:    req.ImageURL,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		NumImages:   req.NumImages,
	}

	a.Logger.Info().
		Str("thread_id", turn.ThreadID).
		Bool("has_image", turn.ImageURL != "").
		Str("model", turn.Model).
		Str("aspect_ratio", turn.AspectRatio).
		Int("num_images", turn.NumImages).
		Int("msg_len", len(req.Message)).
		Msg("chat request")

	out, err := a.Agent.Run(r.Context(), turn, req.Message)
	if err != nil {
		a.Logger.Error().Err(err).Str("thread_id", turn.ThreadID).Msg("chat failed")
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.Logger.Info().Int("thumbnails", len(out.Thumbnails)).Msg("chat response")
	a.json(w, http.StatusOK, map[string]any{
		"content":    out.Content,
		"thumbnails": out.Thumbnails,
	})
}
