package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
)

// HistoryStore persists per-thread conversation state between turns.
type HistoryStore interface {
	Load(ctx context.Context, threadID string) ([]openai.ChatCompletionMessage, error)
	Save(ctx context.Context, threadID string, msgs []openai.ChatCompletionMessage) error
}

// maxHistoryMessages bounds a thread before it is trimmed from the front.
// The system prompt is re-attached per turn, so trimming never loses it.
const maxHistoryMessages = 40

func trimHistory(msgs []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(msgs) <= maxHistoryMessages {
		return msgs
	}
	trimmed := msgs[len(msgs)-maxHistoryMessages:]
	// Never lead with an orphaned tool result; the API rejects a tool
	// message whose call is missing.
	for len(trimmed) > 0 && trimmed[0].Role == openai.ChatMessageRoleTool {
		trimmed = trimmed[1:]
	}
	return trimmed
}

// MemoryHistory keeps threads in process memory. The default for single-node
// deployments; state is lost on restart.
type MemoryHistory struct {
	mu      sync.Mutex
	threads map[string][]openai.ChatCompletionMessage
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{threads: make(map[string][]openai.ChatCompletionMessage)}
}

func (h *MemoryHistory) Load(ctx context.Context, threadID string) ([]openai.ChatCompletionMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.threads[threadID]
	out := make([]openai.ChatCompletionMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (h *MemoryHistory) Save(ctx context.Context, threadID string, msgs []openai.ChatCompletionMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threads[threadID] = trimHistory(msgs)
	return nil
}

// RedisHistory keeps threads in Redis so conversations survive restarts and
// can be shared across replicas.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisHistory{client: client, ttl: ttl}
}

func historyKey(threadID string) string {
	return "chat:thread:" + threadID
}

func (h *RedisHistory) Load(ctx context.Context, threadID string) ([]openai.ChatCompletionMessage, error) {
	raw, err := h.client.Get(ctx, historyKey(threadID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: load thread: %w", err)
	}
	var msgs []openai.ChatCompletionMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		// A corrupt thread should not wedge the conversation forever.
		return nil, nil
	}
	return msgs, nil
}

func (h *RedisHistory) Save(ctx context.Context, threadID string, msgs []openai.ChatCompletionMessage) error {
	raw, err := json.Marshal(trimHistory(msgs))
	if err != nil {
		return fmt.Errorf("history: encode thread: %w", err)
	}
	if err := h.client.Set(ctx, historyKey(threadID), raw, h.ttl).Err(); err != nil {
		return fmt.Errorf("history: save thread: %w", err)
	}
	return nil
}
