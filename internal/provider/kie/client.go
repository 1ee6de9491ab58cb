package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"productshot-server/internal/domain"
)

const (
	defaultBaseURL      = "https://api.kie.ai"
	defaultPollInterval = 3 * time.Second
	defaultPollAttempts = 40
)

// Options configures a Client. Zero values fall back to production defaults;
// tests inject BaseURL, HTTPClient and a short PollInterval.
type Options struct {
	BaseURL      string
	APIKey       string
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollAttempts int
}

// Client submits one generation task to the provider and polls it to a
// terminal state. It keeps no state across calls.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollAttempts int
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		apiKey:       strings.TrimSpace(opts.APIKey),
		pollInterval: interval,
		pollAttempts: attempts,
	}
}

type createTaskRequest struct {
	Model string          `json:"model"`
	Input createTaskInput `json:"input"`
}

type createTaskInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
}

type createTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID   string `json:"taskId"`
		RecordID string `json:"recordId"`
	} `json:"data"`
}

type taskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// TaskStatus is one snapshot of a provider job. ResultURLs is populated only
// in the success state.
type TaskStatus struct {
	State      string
	ResultURLs []string
	FailMsg    string
}

// SubmitAndWait creates one provider task and polls it until success, failure
// or the attempt budget runs out. On success it returns the result URLs; a
// success whose result payload is absent or malformed yields zero URLs, not
// an error. Network errors are not retried here.
func (c *Client) SubmitAndWait(ctx context.Context, req domain.GenerationRequest) ([]string, error) {
	taskID, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		status, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case "success":
			return status.ResultURLs, nil
		case "fail":
			return nil, fmt.Errorf("%w: task %s: %s", domain.ErrProviderJobFailed, taskID, status.FailMsg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("%w: task %s after %d attempts", domain.ErrProviderTimeout, taskID, c.pollAttempts)
}

// Submit creates a provider task and returns its identifier.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload := createTaskRequest{
		Model: req.Model,
		Input: createTaskInput{
			Prompt:       req.Prompt,
			AspectRatio:  req.AspectRatio,
			Resolution:   req.Resolution,
			OutputFormat: req.OutputFormat,
		},
	}
	if req.ImageURL != "" {
		payload.Input.ImageInput = []string{req.ImageURL}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal create task: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out createTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode create task response: %v", domain.ErrProviderProtocol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: create task returned status %d: %s", domain.ErrProviderProtocol, resp.StatusCode, out.Message)
	}

	// The provider answers with taskId on the primary path and recordId on
	// the legacy one; either identifies the job.
	taskID := out.Data.TaskID
	if taskID == "" {
		taskID = out.Data.RecordID
	}
	if taskID == "" {
		return "", fmt.Errorf("%w: create task response missing task id", domain.ErrProviderProtocol)
	}
	return taskID, nil
}

// Status fetches the current state of a task. A successful task with a
// missing or malformed result payload reports zero URLs.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	raw, err := c.taskStatus(ctx, taskID)
	if err != nil {
		return TaskStatus{}, err
	}
	status := TaskStatus{State: raw.Data.State}
	switch raw.Data.State {
	case "success":
		status.ResultURLs = parseResultURLs(raw.Data.ResultJSON)
	case "fail":
		status.FailMsg = raw.Data.FailMsg
		if status.FailMsg == "" {
			status.FailMsg = raw.Message
		}
	}
	return status, nil
}

func (c *Client) taskStatus(ctx context.Context, taskID string) (*taskStatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/recordInfo?taskId="+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out taskStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode task status response: %v", domain.ErrProviderProtocol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: task status returned status %d: %s", domain.ErrProviderProtocol, resp.StatusCode, out.Message)
	}
	return &out, nil
}

// parseResultURLs unwraps the double-encoded result payload. The provider
// embeds a JSON string inside the status JSON; a missing or malformed payload
// is treated as zero results.
func parseResultURLs(resultJSON string) []string {
	if strings.TrimSpace(resultJSON) == "" {
		return []string{}
	}
	var payload resultPayload
	if err := json.Unmarshal([]byte(resultJSON), &payload); err != nil {
		return []string{}
	}
	if payload.ResultURLs == nil {
		return []string{}
	}
	return payload.ResultURLs
}
