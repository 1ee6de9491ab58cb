package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"productshot-server/internal/agent"
	"productshot-server/internal/domain"
	"productshot-server/internal/provider/kie"
	"productshot-server/internal/storage"
)

// ChatAgent runs one conversational turn.
type ChatAgent interface {
	Run(ctx context.Context, turn domain.TurnContext, message string) (agent.TurnResult, error)
}

// CreditReader exposes the read side of the ledger.
type CreditReader interface {
	Balance(ctx context.Context, userID, email string) int
	Unlimited(userID, email string) bool
}

// JobAPI is the raw provider surface behind /generate and /status.
type JobAPI interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (string, error)
	Status(ctx context.Context, taskID string) (kie.TaskStatus, error)
}

type App struct {
	Logger  zerolog.Logger
	Store   storage.Store
	Agent   ChatAgent
	Credits CreditReader
	Jobs    JobAPI
}

func NewApp(logger zerolog.Logger, store storage.Store, chat ChatAgent, credits CreditReader, jobs JobAPI) *App {
	return &App{Logger: logger, Store: store, Agent: chat, Credits: credits, Jobs: jobs}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"detail": msg})
}
