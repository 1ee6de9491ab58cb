package generate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"productshot-server/internal/domain"
)

type stubJobClient struct {
	mu    sync.Mutex
	calls int32
	fn    func(call int, req domain.GenerationRequest) ([]string, error)
}

func (s *stubJobClient) SubmitAndWait(ctx context.Context, req domain.GenerationRequest) ([]string, error) {
	call := int(atomic.AddInt32(&s.calls, 1))
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	return fn(call, req)
}

type stubResolver struct {
	resolved string
	err      error
}

func (s *stubResolver) PublicURL(ctx context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.resolved, nil
}

func TestGenerateClampsCount(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int32
	}{
		{"zero becomes one", 0, 1},
		{"negative becomes one", -1, 1},
		{"one", 1, 1},
		{"four", 4, 4},
		{"five capped at four", 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
				return []string{"https://cdn.example/x.png"}, nil
			}}
			o := NewOrchestrator(client, nil, zerolog.Nop())
			o.Generate(context.Background(), Request{Prompt: "p", Count: tt.count})
			if got := atomic.LoadInt32(&client.calls); got != tt.want {
				t.Fatalf("got %d branch calls, want %d", got, tt.want)
			}
		})
	}
}

func TestGenerateAggregatesAllBranches(t *testing.T) {
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		return []string{"https://cdn.example/img.png"}, nil
	}}
	o := NewOrchestrator(client, nil, zerolog.Nop())

	urls := o.Generate(context.Background(), Request{Prompt: "p", Count: 4})
	if len(urls) != 4 {
		t.Fatalf("got %d urls, want 4", len(urls))
	}
}

func TestGeneratePartialFailureKeepsSurvivors(t *testing.T) {
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		if call%2 == 0 {
			return nil, errors.New("provider hiccup")
		}
		return []string{"https://cdn.example/ok.png"}, nil
	}}
	o := NewOrchestrator(client, nil, zerolog.Nop())

	urls := o.Generate(context.Background(), Request{Prompt: "p", Count: 4})
	if len(urls) != 2 {
		t.Fatalf("got %d urls, want 2", len(urls))
	}
}

func TestGenerateAllFailedYieldsEmptyNotNil(t *testing.T) {
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		return nil, errors.New("boom")
	}}
	o := NewOrchestrator(client, nil, zerolog.Nop())

	urls := o.Generate(context.Background(), Request{Prompt: "p", Count: 3})
	if urls == nil {
		t.Fatal("aggregate should be empty, not nil")
	}
	if len(urls) != 0 {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestGenerateKeepsDuplicateURLs(t *testing.T) {
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		return []string{"https://cdn.example/same.png"}, nil
	}}
	o := NewOrchestrator(client, nil, zerolog.Nop())

	urls := o.Generate(context.Background(), Request{Prompt: "p", Count: 3})
	if len(urls) != 3 {
		t.Fatalf("duplicates must be kept, got %v", urls)
	}
}

func TestGenerateAppliesDefaults(t *testing.T) {
	var gotModel, gotAspect string
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		gotModel = req.Model
		gotAspect = req.AspectRatio
		return nil, nil
	}}
	o := NewOrchestrator(client, nil, zerolog.Nop())

	o.Generate(context.Background(), Request{Prompt: "p", Count: 1})
	if gotModel != domain.DefaultModel {
		t.Fatalf("got model %q, want %q", gotModel, domain.DefaultModel)
	}
	if gotAspect != domain.DefaultAspectRatio {
		t.Fatalf("got aspect %q, want %q", gotAspect, domain.DefaultAspectRatio)
	}
}

func TestGenerateResolvesImageRefOncePerBranch(t *testing.T) {
	var gotURL string
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		gotURL = req.ImageURL
		return nil, nil
	}}
	resolver := &stubResolver{resolved: "https://public.example/f.png"}
	o := NewOrchestrator(client, resolver, zerolog.Nop())

	o.Generate(context.Background(), Request{Prompt: "p", ImageRef: "http://localhost:8000/files/f.png", Count: 1})
	if gotURL != "https://public.example/f.png" {
		t.Fatalf("got image url %q", gotURL)
	}
}

func TestGenerateResolverFailureFailsBranch(t *testing.T) {
	client := &stubJobClient{fn: func(call int, req domain.GenerationRequest) ([]string, error) {
		t.Error("job client should not be called when resolution fails")
		return nil, nil
	}}
	resolver := &stubResolver{err: errors.New("all hosts down")}
	o := NewOrchestrator(client, resolver, zerolog.Nop())

	urls := o.Generate(context.Background(), Request{Prompt: "p", ImageRef: "http://localhost:8000/files/f.png", Count: 1})
	if len(urls) != 0 {
		t.Fatalf("unexpected urls %v", urls)
	}
}
