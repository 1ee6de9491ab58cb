package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Generation provider.
	ProviderBaseURL      string
	ProviderAPIKey       string
	ProviderPollInterval time.Duration
	ProviderPollAttempts int

	// Chat / vision.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	VisionModel   string

	// Upload storage.
	StorageBackend string // "file" or "s3"
	UploadDir      string
	PublicBaseURL  string
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string
	S3PublicBase   string

	// Credit ledger.
	CreditsBackend     string // "postgres", "supabase" or "none"
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string
	DailyCredits       int
	GenerationCost     int
	UnlimitedEmails    []string
	UnlimitedUserIDs   []string

	// Chat history.
	RedisAddr     string
	RedisPassword string

	AllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8000"),

		ProviderBaseURL:      getEnv("KIE_BASE_URL", "https://api.kie.ai"),
		ProviderAPIKey:       os.Getenv("KIE_API_KEY"),
		ProviderPollInterval: time.Second * time.Duration(getEnvInt("KIE_POLL_INTERVAL_SECONDS", 3)),
		ProviderPollAttempts: getEnvInt("KIE_POLL_ATTEMPTS", 40),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:     getEnv("CHAT_MODEL", "gpt-4o"),
		VisionModel:   getEnv("VISION_MODEL", "gpt-4o"),

		StorageBackend: getEnv("STORAGE_BACKEND", "file"),
		UploadDir:      getEnv("UPLOAD_DIR", "/data/uploads"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8000"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3PublicBase:   os.Getenv("S3_PUBLIC_BASE_URL"),

		CreditsBackend:     getEnv("CREDITS_BACKEND", "none"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		DailyCredits:       getEnvInt("DAILY_CREDITS", 8),
		GenerationCost:     getEnvInt("GENERATION_COST", 4),
		UnlimitedEmails:    getEnvList("CREDITS_UNLIMITED_EMAILS"),
		UnlimitedUserIDs:   getEnvList("CREDITS_UNLIMITED_USER_IDS"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
