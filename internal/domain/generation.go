package domain

// GenerationRequest carries everything one provider job needs. It has no
// identity beyond the call and is never persisted.
type GenerationRequest struct {
	Prompt       string
	ImageURL     string
	Model        string
	AspectRatio  string
	Resolution   string
	OutputFormat string
}

// TurnContext is the per-exchange state surrounding one chat turn. Aspect
// ratio and image count are operator-supplied through this context so the
// agent cannot override them; the agent only authors prompt, image URL and an
// optional model.
type TurnContext struct {
	ThreadID    string
	UserID      string
	Email       string
	ImageURL    string
	Model       string
	AspectRatio string
	NumImages   int
}

const (
	DefaultModel        = "nano-banana-pro"
	DefaultAspectRatio  = "4:3"
	DefaultResolution   = "1K"
	DefaultOutputFormat = "png"
	DefaultNumImages    = 4
	MaxImagesPerRequest = 4
)
