package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	DatabaseURL            string
	EncryptionKey          string
	StateSecret            string
	LineChannelSecret      string
	LineChannelAccessToken string
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleRedirectURI      string
	GeminiAPIKey           string
	ExtractionTimeout      time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	extractionTimeout := 30 * time.Second
	if t := os.Getenv("EXTRACTION_TIMEOUT"); t != "" {
		if parsed, err := time.ParseDuration(t); err == nil {
			extractionTimeout = parsed
		}
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		EncryptionKey:          getEnv("ENCRYPTION_KEY", ""),
		StateSecret:            getEnv("STATE_SECRET", "change-me-in-production"),
		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:      getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		ExtractionTimeout:      extractionTimeout,
	}
}

// BaseURL derives the public base URL from the OAuth redirect URI, used
// to build the auth links sent over LINE.
func (c *Config) BaseURL() string {
	return strings.TrimSuffix(c.GoogleRedirectURI, "/auth/google/callback")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
