package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"productshot-server/internal/storage"
)

const analysisPrompt = "Analyze this product photography image. Describe: " +
	"1) What product or object is shown, 2) Current lighting and composition, " +
	"3) Background/setting, 4) Suggestions for improving the shot. Be concise (3-5 sentences)."

// Describer produces a short text analysis of a product image through a
// vision-capable chat model.
type Describer struct {
	client *openai.Client
	model  string
	store  storage.Store
}

func NewDescriber(client *openai.Client, model string, store storage.Store) *Describer {
	return &Describer{client: client, model: model, store: store}
}

// Describe analyzes the referenced image. Locally-served references are read
// from storage and inlined as data URLs so the call never loops back into
// this process; everything else is passed to the model as a plain URL.
func (d *Describer) Describe(ctx context.Context, imageRef string) (string, error) {
	if d == nil || d.client == nil {
		return "", errors.New("vision: not configured")
	}

	visionURL := imageRef
	if isLocalRef(imageRef) {
		inline, err := d.inlineLocal(ctx, imageRef)
		if err != nil {
			return "", err
		}
		visionURL = inline
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: visionURL}},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision: describe image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (d *Describer) inlineLocal(ctx context.Context, imageRef string) (string, error) {
	idx := strings.LastIndex(imageRef, "/files/")
	if idx < 0 {
		return "", fmt.Errorf("vision: local reference must be a /files/ path: %s", imageRef)
	}
	name := imageRef[idx+len("/files/"):]
	if q := strings.IndexByte(name, '?'); q >= 0 {
		name = name[:q]
	}

	data, err := d.store.Read(ctx, name)
	if err != nil {
		return "", err
	}

	mime := "image/png"
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func isLocalRef(ref string) bool {
	return strings.Contains(ref, "localhost") || strings.Contains(ref, "127.0.0.1")
}
