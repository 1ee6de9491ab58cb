package handlers

import (
	"encoding/json"
	"net/http"

	"productshot-server/internal/domain"
)

type generateRequest struct {
	Model        string   `json:"model"`
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input"`
	AspectRatio  string   `json:"aspect_ratio"`
	Resolution   string   `json:"resolution"`
	OutputFormat string   `json:"output_format"`
}

// Generate submits one provider task without waiting for it; clients poll
// /status with the returned task id. This is the raw surface the agent's
// managed flow sits on top of.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil {
		a.error(w, http.StatusInternalServerError, "generation provider is not configured")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Model == "" {
		req.Model = domain.DefaultModel
	}
	imageURL := ""
	if len(req.ImageInput) > 0 {
		imageURL = req.ImageInput[0]
	}

	taskID, err := a.Jobs.Submit(r.Context(), domain.GenerationRequest{
		Prompt:       req.Prompt,
		ImageURL:     imageURL,
		Model:        req.Model,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("generate: submit failed")
		a.error(w, http.StatusBadGateway, err.Error())
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"data": map[string]string{"taskId": taskID},
	})
}

// Status reports the current state of a submitted task.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	if a.Jobs == nil {
		a.error(w, http.StatusInternalServerError, "generation provider is not configured")
		return
	}
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		a.error(w, http.StatusBadRequest, "task_id is required")
		return
	}

	status, err := a.Jobs.Status(r.Context(), taskID)
	if err != nil {
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("status: fetch failed")
		a.error(w, http.StatusBadGateway, err.Error())
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"state":      status.State,
			"resultUrls": status.ResultURLs,
			"failMsg":    status.FailMsg,
		},
	})
}
