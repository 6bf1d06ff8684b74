package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
	BatchSize int
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
}

type Config struct {
	LogMode string

	HTTPAddr string

	StoreBackend string
	RedisURL     string
	PostgresDSN  string
	CorpusFile   string

	SeedURLs       []string
	SameHostOnly   bool
	MaxPages       int
	RequestTimeout time.Duration
	UserAgent      string

	ChunkSize    int
	ChunkOverlap int
	MinChunkLen  int

	TopK                int
	SimilarityThreshold float64
	MaxContextChars     int

	Embeddings EmbeddingConfig
	LLM        LLMConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Load reads configuration from the environment, consulting a .env file when
// present. Every setting has a fallback so a bare environment still yields a
// runnable configuration (minus API keys).
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LogMode: getEnv("LOG_MODE", "dev"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		StoreBackend: getEnv("STORE_BACKEND", StoreRedis),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "postgres://localhost:5432/company-rag?sslmode=disable"),
		CorpusFile:   getEnv("CORPUS_FILE", "corpus_local.json"),

		SeedURLs: getEnvList("SEED_URLS", []string{
			"https://thebngc.com",
			"https://gogel.thebngc.com",
			"https://gogel.thebngc.com/agents",
			"https://uptura-tech.com",
		}),
		SameHostOnly:   getEnvBool("CRAWL_SAME_HOST_ONLY", true),
		MaxPages:       getEnvInt("CRAWL_MAX_PAGES", 300),
		RequestTimeout: getEnvDuration("CRAWL_REQUEST_TIMEOUT", 15*time.Second),
		UserAgent:      getEnv("CRAWL_USER_AGENT", "RAGCrawler/2.0 (+https://thebngc.com)"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 150),
		MinChunkLen:  getEnvInt("MIN_CHUNK_LEN", 50),

		TopK:                getEnvInt("TOP_K", 5),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.3),
		MaxContextChars:     getEnvInt("MAX_CONTEXT_CHARS", 4000),

		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
			BatchSize: getEnvInt("EMBEDDINGS_BATCH_SIZE", 100),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: float32(getEnvFloat("LLM_TEMPERATURE", 0.1)),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1000),
		},

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
