package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Provider fallback order, highest priority first.
	ProviderOrder []string

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string
	OllamaModel   string

	SessionTTL    time.Duration
	SweepInterval time.Duration

	// SessionBackend selects "memory" or "redis".
	SessionBackend string
	RedisAddr      string
	RedisPassword  string

	SheetsSpreadsheetID       string
	SheetName                 string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProviderOrder: splitList(getEnv("AI_PROVIDER_ORDER", "gemini,ollama")),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		OllamaBaseURL: getEnv("OLLAMA_API_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2"),

		SessionTTL:    getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),

		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),

		SheetsSpreadsheetID:       getEnv("GOOGLE_SHEETS_ID", ""),
		SheetName:                 getEnv("GOOGLE_SHEET_NAME", "Sheet1"),
		GoogleServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey:          getEnv("GOOGLE_PRIVATE_KEY", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
