package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productshot-server/internal/domain"
	"productshot-server/internal/generate"
	"productshot-server/internal/storage"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Orchestrator fans a prompt out into provider jobs.
type Orchestrator interface {
	Generate(ctx context.Context, req generate.Request) []string
}

// Ledger gates generation on the user's credit balance.
type Ledger interface {
	Deduct(ctx context.Context, userID, email string, cost int) bool
}

// Tools implements the two operations the agent may invoke during a turn.
// Their string results flow straight back into the conversation, so errors
// are reported in-band with an "Error: " prefix instead of failing the turn.
type Tools struct {
	store  storage.Store
	orch   Orchestrator
	ledger Ledger
	logger zerolog.Logger
}

func NewTools(store storage.Store, orch Orchestrator, ledger Ledger, logger zerolog.Logger) *Tools {
	return &Tools{store: store, orch: orch, ledger: ledger, logger: logger}
}

// StoreImage decodes a base64 payload (with or without a data-URL prefix),
// sniffs the image type, and persists it under a fresh random name. It
// returns the public URL the stored image is served from.
func (t *Tools) StoreImage(ctx context.Context, imageBase64 string) (string, error) {
	if i := strings.IndexByte(imageBase64, ','); i >= 0 {
		imageBase64 = imageBase64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	ext := ".jpg"
	if bytes.HasPrefix(data, pngSignature) {
		ext = ".png"
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	url, err := t.store.Save(ctx, name, data)
	if err != nil {
		return "", err
	}
	t.logger.Info().Str("name", name).Int("bytes", len(data)).Msg("agent: stored image")
	return url, nil
}

// GenerateImage runs one credit-gated generation and renders the outcome as
// the tool's string result: result URLs joined by newlines, the sentinel
// "No result URLs." when every branch came back empty, or an "Error: "
// message the model is instructed to surface verbatim.
func (t *Tools) GenerateImage(ctx context.Context, turn domain.TurnContext, prompt, imageURL, model string) string {
	if t.ledger != nil && !t.ledger.Deduct(ctx, turn.UserID, turn.Email, 0) {
		t.logger.Warn().Str("user_id", turn.UserID).Msg("agent: generation blocked on credits")
		return "Error: " + domain.ErrInsufficientCredits.Error()
	}

	count := turn.NumImages
	if count == 0 {
		count = domain.DefaultNumImages
	}
	if model == "" {
		model = turn.Model
	}

	urls := t.orch.Generate(ctx, generate.Request{
		Prompt:      prompt,
		ImageRef:    imageURL,
		Model:       model,
		AspectRatio: turn.AspectRatio,
		Count:       count,
	})
	if len(urls) == 0 {
		return "No result URLs."
	}
	return strings.Join(urls, "\n")
}
