package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig
	Serper     SerperConfig
	Fetch      FetchConfig
	Matcher    MatcherConfig
	PostgreSQL PostgreSQLConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	Model               string // Model used for the matching loop
	MaxOutputTokens     int
	Timeout             int // Seconds for one model call
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	Enabled             bool
}

// SerperConfig holds the web search provider configuration.
// When APIKey is empty the web_search tool returns a fallback
// result instead of failing.
type SerperConfig struct {
	APIKey     string
	Endpoint   string
	Timeout    int // Seconds; search must complete or fail within this bound
	MaxResults int
}

// FetchConfig holds the http_get tool configuration
type FetchConfig struct {
	Timeout         int // Seconds
	MaxContentChars int // Content above this is head/tail truncated
	MaxBodyBytes    int64
	UserAgent       string
}

// MatcherConfig holds the orchestration loop configuration
type MatcherConfig struct {
	MaxRounds    int // Model invocations per request
	DefaultLimit int
	MaxLimit     int
}

// PostgreSQLConfig holds the optional match archive configuration.
// The matcher runs fully without it; Enabled follows the DSN.
type PostgreSQLConfig struct {
	DSN                string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	dsn := getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", "")))

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:               getEnv("OPENAI_MODEL", "gpt-4.1"),
			MaxOutputTokens:     getEnvAsInt("OPENAI_MAX_OUTPUT_TOKENS", 4096),
			Timeout:             getEnvAsInt("OPENAI_TIMEOUT", 120),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Serper: SerperConfig{
			APIKey:     getEnv("SERPER_API_KEY", ""),
			Endpoint:   getEnv("SERPER_ENDPOINT", "https://google.serper.dev/search"),
			Timeout:    getEnvAsInt("SERPER_TIMEOUT", 20),
			MaxResults: getEnvAsInt("SERPER_MAX_RESULTS", 10),
		},
		Fetch: FetchConfig{
			Timeout:         getEnvAsInt("FETCH_TIMEOUT", 20),
			MaxContentChars: getEnvAsInt("FETCH_MAX_CONTENT_CHARS", 20000),
			MaxBodyBytes:    int64(getEnvAsInt("FETCH_MAX_BODY_BYTES", 2*1024*1024)),
			UserAgent:       getEnv("FETCH_USER_AGENT", "ListingMatcher/1.0"),
		},
		Matcher: MatcherConfig{
			MaxRounds:    getEnvAsInt("MATCHER_MAX_ROUNDS", 3),
			DefaultLimit: getEnvAsInt("MATCHER_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvAsInt("MATCHER_MAX_LIMIT", 20),
		},
		PostgreSQL: PostgreSQLConfig{
			DSN:                dsn,
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			Enabled:            dsn != "" && getEnvAsBool("ARCHIVE_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	switch valueStr {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	log.Printf("Warning: Invalid boolean value for %s, using default %v", key, defaultValue)
	return defaultValue
}
