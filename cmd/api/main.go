package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"productshot-server/internal/agent"
	"productshot-server/internal/credit"
	"productshot-server/internal/generate"
	"productshot-server/internal/hosting"
	"productshot-server/internal/http/handlers"
	httpapi "productshot-server/internal/http/httpapi"
	"productshot-server/internal/infra"
	"productshot-server/internal/provider/kie"
	"productshot-server/internal/storage"
	"productshot-server/internal/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Upload storage.
	var store storage.Store
	switch cfg.StorageBackend {
	case "s3":
		s3store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBase,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init s3 storage")
		}
		store = s3store
	default:
		fileStore, err := storage.NewFileStore(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init file storage")
		}
		store = fileStore
	}

	// Generation provider and the fan-out on top of it.
	jobs := kie.NewClient(kie.Options{
		BaseURL:      cfg.ProviderBaseURL,
		APIKey:       cfg.ProviderAPIKey,
		PollInterval: cfg.ProviderPollInterval,
		PollAttempts: cfg.ProviderPollAttempts,
	})
	relay := hosting.NewRelay(hosting.Options{UploadDir: cfg.UploadDir})
	orchestrator := generate.NewOrchestrator(jobs, relay, logger)

	// Credit ledger.
	var creditStore credit.Store
	switch cfg.CreditsBackend {
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		creditStore = credit.NewPostgresStore(pool)
	case "supabase":
		sb, err := credit.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init supabase client")
		}
		creditStore = sb
	default:
		logger.Warn().Msg("no credits backend configured, ledger fails open")
	}
	ledger := credit.NewLedger(creditStore, credit.Config{
		DailyLimit:       cfg.DailyCredits,
		GenerationCost:   cfg.GenerationCost,
		UnlimitedEmails:  cfg.UnlimitedEmails,
		UnlimitedUserIDs: cfg.UnlimitedUserIDs,
	}, logger)

	// Conversational agent.
	var chatAgent handlers.ChatAgent
	if cfg.OpenAIAPIKey != "" {
		oaCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oaCfg.BaseURL = cfg.OpenAIBaseURL
		}
		oaClient := openai.NewClientWithConfig(oaCfg)

		var history agent.HistoryStore
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			history = agent.NewRedisHistory(rdb, 24*time.Hour)
		} else {
			history = agent.NewMemoryHistory()
		}

		tools := agent.NewTools(store, orchestrator, ledger, logger)
		describer := vision.NewDescriber(oaClient, cfg.VisionModel, store)
		chatAgent = agent.NewAgent(oaClient, cfg.ChatModel, tools, history, describer, logger)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, chat endpoint disabled")
	}

	app := handlers.NewApp(logger, store, chatAgent, ledger, jobs)
	router := httpapi.NewRouter(app, logger, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != os.ErrClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
