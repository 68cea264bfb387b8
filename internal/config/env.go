package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	JWTSecret    string

	AIProvider   string // "openai" or "gemini"
	OpenAIAPIKey string
	GeminiAPIKey string
	EmbedModel   string
	EmbedDim     int
	GenModel     string

	PollInterval       time.Duration
	MaxProcessAttempts int
	ProcessConcurrency int
	CallTimeout        time.Duration

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	Port string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "docsage-files"),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		AIProvider:   getEnv("AI_PROVIDER", "openai"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		// Empty model names let each provider pick its own default.
		EmbedModel: getEnv("EMBED_MODEL", ""),
		EmbedDim:   getEnvInt("EMBED_DIM", 1536),
		GenModel:   getEnv("GEN_MODEL", ""),

		PollInterval:       getEnvDuration("POLL_INTERVAL", 2*time.Second),
		MaxProcessAttempts: getEnvInt("MAX_PROCESS_ATTEMPTS", 3),
		ProcessConcurrency: getEnvInt("PROCESS_CONCURRENCY", 8),
		CallTimeout:        getEnvDuration("CALL_TIMEOUT", 60*time.Second),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 300),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
		TopK:         getEnvInt("RETRIEVE_TOP_K", 5),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY not set")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY not set")
		}
	default:
		log.Fatalf("unknown AI_PROVIDER %q (want openai or gemini)", cfg.AIProvider)
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
