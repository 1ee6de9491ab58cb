package generate

import (
	"context"

	"github.com/rs/zerolog"

	"productshot-server/internal/domain"
)

// JobClient runs one provider job to a terminal state.
type JobClient interface {
	SubmitAndWait(ctx context.Context, req domain.GenerationRequest) ([]string, error)
}

// Resolver turns a possibly-local image reference into a URL the provider can
// fetch.
type Resolver interface {
	PublicURL(ctx context.Context, ref string) (string, error)
}

// Request describes one user-facing generation call, fanned out into Count
// independent provider jobs.
type Request struct {
	Prompt      string
	ImageRef    string
	Model       string
	AspectRatio string
	Count       int
}

// Orchestrator fans a generation request out into parallel provider jobs and
// aggregates whatever succeeded.
type Orchestrator struct {
	client   JobClient
	resolver Resolver
	logger   zerolog.Logger
}

func NewOrchestrator(client JobClient, resolver Resolver, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{client: client, resolver: resolver, logger: logger}
}

// Generate dispatches the clamped number of branches and returns every result
// URL in completion order. A failed branch contributes nothing and never
// fails the call: the aggregate may be empty, which callers treat as a soft
// failure. Duplicate URLs across branches are kept; presentation-level
// extraction is the only place that deduplicates.
func (o *Orchestrator) Generate(ctx context.Context, req Request) []string {
	count := req.Count
	if count < 1 {
		count = 1
	}
	if count > domain.MaxImagesPerRequest {
		count = domain.MaxImagesPerRequest
	}

	if count == 1 {
		urls, err := o.runBranch(ctx, req, 0)
		if err != nil {
			o.logger.Warn().Err(err).Msg("generate: branch failed")
			return []string{}
		}
		return urls
	}

	results := make(chan []string, count)
	for i := 0; i < count; i++ {
		go func(branch int) {
			urls, err := o.runBranch(ctx, req, branch)
			if err != nil {
				o.logger.Warn().Err(err).Int("branch", branch).Msg("generate: branch failed")
				results <- nil
				return
			}
			results <- urls
		}(i)
	}

	all := []string{}
	for i := 0; i < count; i++ {
		all = append(all, <-results...)
	}
	return all
}

func (o *Orchestrator) runBranch(ctx context.Context, req Request, branch int) ([]string, error) {
	imageURL := req.ImageRef
	if o.resolver != nil && imageURL != "" {
		resolved, err := o.resolver.PublicURL(ctx, imageURL)
		if err != nil {
			return nil, err
		}
		imageURL = resolved
	}

	model := req.Model
	if model == "" {
		model = domain.DefaultModel
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = domain.DefaultAspectRatio
	}

	o.logger.Debug().Int("branch", branch).Str("model", model).Str("aspect_ratio", aspect).Msg("generate: submitting job")

	return o.client.SubmitAndWait(ctx, domain.GenerationRequest{
		Prompt:       req.Prompt,
		ImageURL:     imageURL,
		Model:        model,
		AspectRatio:  aspect,
		Resolution:   domain.DefaultResolution,
		OutputFormat: domain.DefaultOutputFormat,
	})
}
