package kie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"productshot-server/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Options{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		HTTPClient:   srv.Client(),
		PollInterval: time.Millisecond,
		PollAttempts: 3,
	})
	return client, srv
}

func TestSubmitUsesTaskID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/createTask" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "nano-banana-pro" {
			t.Errorf("unexpected model %q", payload.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]string{"taskId": "task-123"},
		})
	}))

	id, err := client.Submit(context.Background(), domain.GenerationRequest{
		Prompt: "studio shot",
		Model:  "nano-banana-pro",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "task-123" {
		t.Fatalf("got task id %q, want task-123", id)
	}
}

func TestSubmitFallsBackToRecordID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]string{"recordId": "rec-9"},
		})
	}))

	id, err := client.Submit(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "rec-9" {
		t.Fatalf("got task id %q, want rec-9", id)
	}
}

func TestSubmitMissingIDIsProtocolError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": map[string]string{}})
	}))

	_, err := client.Submit(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if !errors.Is(err, domain.ErrProviderProtocol) {
		t.Fatalf("got %v, want ErrProviderProtocol", err)
	}
}

func TestSubmitAndWaitSuccess(t *testing.T) {
	polls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/createTask":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"taskId": "t1"},
			})
		case "/api/v1/jobs/recordInfo":
			polls++
			state := "running"
			resultJSON := ""
			if polls >= 2 {
				state = "success"
				resultJSON = `{"resultUrls":["https://cdn.example/a.png","https://cdn.example/b.png"]}`
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"state": state, "resultJson": resultJSON},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	urls, err := client.SubmitAndWait(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://cdn.example/a.png" {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestSubmitAndWaitMalformedResultYieldsNoURLs(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/createTask":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"taskId": "t1"},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"state": "success", "resultJson": "{not json"},
			})
		}
	}))

	urls, err := client.SubmitAndWait(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if urls == nil {
		t.Fatal("urls should be empty, not nil")
	}
	if len(urls) != 0 {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestSubmitAndWaitFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/createTask":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"taskId": "t1"},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"state": "fail", "failMsg": "content policy"},
			})
		}
	}))

	_, err := client.SubmitAndWait(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if !errors.Is(err, domain.ErrProviderJobFailed) {
		t.Fatalf("got %v, want ErrProviderJobFailed", err)
	}
}

func TestSubmitAndWaitTimeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/createTask":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"taskId": "t1"},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"state": "running"},
			})
		}
	}))

	_, err := client.SubmitAndWait(context.Background(), domain.GenerationRequest{Prompt: "p", Model: "m"})
	if !errors.Is(err, domain.ErrProviderTimeout) {
		t.Fatalf("got %v, want ErrProviderTimeout", err)
	}
}

func TestParseResultURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"malformed", "{oops", 0},
		{"no urls key", "{}", 0},
		{"two urls", `{"resultUrls":["a","b"]}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseResultURLs(tt.input)
			if got == nil {
				t.Fatal("result should never be nil")
			}
			if len(got) != tt.want {
				t.Fatalf("got %d urls, want %d", len(got), tt.want)
			}
		})
	}
}
