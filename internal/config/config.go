package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AIProvider selects which plan-generator backend to use.
type AIProvider string

const (
	ProviderGemini AIProvider = "gemini"
	ProviderCustom AIProvider = "custom" // any OpenAI-compatible chat endpoint
)

// Config holds the configuration for the application.
type Config struct {
	// Proxy client (assistant side)
	ProxyURL    string
	ProxySecret string

	// Proxy server (backend side)
	ProxyListenAddr string
	UpstreamURL     string
	UpstreamCookie  string // session cookie value injected into upstream requests

	// AI provider
	AIProvider     AIProvider
	GeminiAPIKey   string
	GeminiModel    string
	CustomEndpoint string
	CustomAPIKey   string
	CustomModel    string

	// Persistence
	DatabasePath string

	// Telegram
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramListenAddr     string
	TelegramAllowedUserIDs []int64
}

// NewFromEnv creates a new Config from environment variables. A .env file is
// loaded first if present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ProxyURL:           getEnv("PROXY_URL", "http://localhost:8090"),
		ProxySecret:        os.Getenv("PROXY_SECRET"),
		ProxyListenAddr:    getEnv("PROXY_LISTEN_ADDR", ":8090"),
		UpstreamURL:        os.Getenv("UPSTREAM_URL"),
		UpstreamCookie:     os.Getenv("UPSTREAM_COOKIE"),
		AIProvider:         AIProvider(getEnv("AI_PROVIDER", string(ProviderGemini))),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		CustomEndpoint:     os.Getenv("CUSTOM_AI_ENDPOINT"),
		CustomAPIKey:       os.Getenv("CUSTOM_AI_API_KEY"),
		CustomModel:        getEnv("CUSTOM_AI_MODEL", "llama-3.3-70b-versatile"),
		DatabasePath:       getEnv("DATABASE_PATH", "data/assistant.db"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramListenAddr: getEnv("TELEGRAM_LISTEN_ADDR", ":8080"),
	}

	if cfg.ProxySecret == "" {
		return nil, fmt.Errorf("PROXY_SECRET environment variable not set")
	}

	for _, part := range strings.Split(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
		}
		cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
	}

	return cfg, nil
}

// AIConfigured reports whether the selected provider has every mandatory
// field. Plan generation must not be attempted while this is false.
func (c *Config) AIConfigured() bool {
	switch c.AIProvider {
	case ProviderCustom:
		return c.CustomEndpoint != "" && c.CustomAPIKey != ""
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return false
	}
}

// ValidateProxyServer checks the fields the proxy backend needs.
func (c *Config) ValidateProxyServer() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("UPSTREAM_URL environment variable not set")
	}
	if c.UpstreamCookie == "" {
		return fmt.Errorf("UPSTREAM_COOKIE environment variable not set")
	}
	return nil
}

// ValidateBot checks the fields the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
