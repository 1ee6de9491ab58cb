package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"productshot-server/internal/http/handlers"
	"productshot-server/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(allowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/health", app.Health)

	r.Post("/upload", app.Upload)
	r.Get("/files/{name}", app.ServeFile)

	r.Post("/chat", app.Chat)
	r.Get("/credits", app.CreditsBalance)

	r.Post("/generate", app.Generate)
	r.Get("/status", app.Status)

	return r
}
