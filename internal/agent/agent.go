package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"productshot-server/internal/domain"
)

const systemPrompt = "You are a product photography AI assistant. " +
	"When the user asks for background or prompt suggestions, generate them dynamically based on the product in context. " +
	"Use the image analysis (product type, brand, packaging, colors, ingredients, target audience) to suggest 3-5 tailored backdrop ideas that fit the product's identity. " +
	"Examples: for food/drinks consider kitchen, farm, restaurant; for beauty consider marble, botanical, spa; for tech consider minimal, studio; for crafts consider artisan, workshop. " +
	"Do NOT repeat a fixed list; always tailor suggestions to the specific product. " +
	"Background removal, props, and background setting are handled by the frontend; do not offer tools for them. " +
	"When the user gives a prompt and there is an image URL in context, call generate_product_image with that URL. " +
	"Use tools to demonstrate each step when asked. " +
	"If a tool returns an error (starts with 'Error:'), include the full error message in your response so the user can debug."

// maxToolRounds bounds one turn's tool-call loop so a model that keeps
// requesting tools cannot spin forever.
const maxToolRounds = 8

// Describer produces a short analysis of an image for context enrichment.
type Describer interface {
	Describe(ctx context.Context, imageRef string) (string, error)
}

// TurnResult is one finished exchange.
type TurnResult struct {
	Content    string
	Thumbnails []string
}

// Agent drives the conversational loop: it enriches the user's message with
// image analysis, hands the model its two tools, executes requested calls,
// and extracts thumbnails from whatever the tools produced.
type Agent struct {
	client  *openai.Client
	model   string
	tools   *Tools
	history HistoryStore
	vision  Describer
	logger  zerolog.Logger
}

func NewAgent(client *openai.Client, model string, tools *Tools, history HistoryStore, vision Describer, logger zerolog.Logger) *Agent {
	if model == "" {
		model = openai.GPT4o
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	return &Agent{
		client:  client,
		model:   model,
		tools:   tools,
		history: history,
		vision:  vision,
		logger:  logger,
	}
}

func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "upload_product_image",
				Description: "Store the uploaded product image and return its public URL. Call when user shares a product photo (base64).",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"image_base64": {"type": "string", "description": "Base64-encoded image, with or without a data-URL prefix."}
					},
					"required": ["image_base64"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "generate_product_image",
				Description: "Generate product photography from prompt and image URL. Uses nano-banana-pro by default.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"prompt": {"type": "string", "description": "Scene description for the generated shots."},
						"image_url": {"type": "string", "description": "URL of the product image to restyle."},
						"model": {"type": "string", "description": "Optional provider model override."}
					},
					"required": ["prompt", "image_url"]
				}`),
			},
		},
	}
}

// Run executes one turn for the thread named in turn.ThreadID.
func (a *Agent) Run(ctx context.Context, turn domain.TurnContext, message string) (TurnResult, error) {
	if a.client == nil {
		return TurnResult{}, errors.New("agent: no model client configured")
	}

	history, err := a.history.Load(ctx, turn.ThreadID)
	if err != nil {
		a.logger.Warn().Err(err).Str("thread_id", turn.ThreadID).Msg("agent: history load failed, starting fresh")
		history = nil
	}

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: a.enrichMessage(ctx, turn, message),
	})

	tools := toolDefinitions()
	var toolOutputs []string
	var content string

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: msgs,
			Tools:    tools,
		})
		if err != nil {
			return TurnResult{}, fmt.Errorf("agent: completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return TurnResult{}, errors.New("agent: empty completion")
		}

		reply := resp.Choices[0].Message
		msgs = append(msgs, reply)

		if len(reply.ToolCalls) == 0 {
			content = reply.Content
			break
		}

		for _, call := range reply.ToolCalls {
			out := a.dispatch(ctx, turn, call)
			toolOutputs = append(toolOutputs, out)
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    out,
			})
		}
	}

	if content == "" {
		// The round budget ran out mid-loop; surface what the tools did.
		content = "I ran out of steps while working on that. Please try again."
	}

	// The stored thread excludes the per-turn system prompt at index 0.
	if err := a.history.Save(ctx, turn.ThreadID, msgs[1:]); err != nil {
		a.logger.Warn().Err(err).Str("thread_id", turn.ThreadID).Msg("agent: history save failed")
	}

	thumbs := ExtractThumbnails(toolOutputs, content)
	a.logger.Info().Str("thread_id", turn.ThreadID).Int("thumbnails", len(thumbs)).Msg("agent: turn done")
	return TurnResult{Content: content, Thumbnails: thumbs}, nil
}

// enrichMessage wraps the raw user message in a context block carrying the
// shared image (with a vision analysis when available) and the operator's
// model choice, so the model sees them without the user retyping anything.
func (a *Agent) enrichMessage(ctx context.Context, turn domain.TurnContext, message string) string {
	modelHint := ""
	if turn.Model != "" {
		modelHint = fmt.Sprintf(" Use model '%s' for generate_product_image.", turn.Model)
	}

	if turn.ImageURL != "" {
		analysis := ""
		if a.vision != nil {
			out, err := a.vision.Describe(ctx, turn.ImageURL)
			if err != nil {
				a.logger.Warn().Err(err).Msg("agent: image analysis failed")
			} else {
				analysis = out
			}
		}
		return fmt.Sprintf("[Context: User shared an image at %s. Image analysis: %s.%s]\n\nUser: %s",
			turn.ImageURL, analysis, modelHint, message)
	}
	if modelHint != "" {
		return fmt.Sprintf("[Context:%s]\n\nUser: %s", modelHint, message)
	}
	return message
}

func (a *Agent) dispatch(ctx context.Context, turn domain.TurnContext, call openai.ToolCall) string {
	switch call.Function.Name {
	case "upload_product_image":
		var args struct {
			ImageBase64 string `json:"image_base64"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "Error: invalid upload_product_image arguments: " + err.Error()
		}
		url, err := a.tools.StoreImage(ctx, args.ImageBase64)
		if err != nil {
			a.logger.Warn().Err(err).Msg("agent: upload_product_image failed")
			return "Error: " + err.Error()
		}
		return url

	case "generate_product_image":
		var args struct {
			Prompt   string `json:"prompt"`
			ImageURL string `json:"image_url"`
			Model    string `json:"model"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "Error: invalid generate_product_image arguments: " + err.Error()
		}
		return a.tools.GenerateImage(ctx, turn, args.Prompt, args.ImageURL, args.Model)

	default:
		return "Error: unknown tool " + call.Function.Name
	}
}
