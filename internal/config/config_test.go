package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("requires proxy secret", func(t *testing.T) {
		t.Setenv("PROXY_SECRET", "")
		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PROXY_SECRET")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PROXY_SECRET", "s3cret")
		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8090", cfg.ProxyURL)
		assert.Equal(t, ProviderGemini, cfg.AIProvider)
		assert.Equal(t, "data/assistant.db", cfg.DatabasePath)
	})

	t.Run("allowed user ids parsed", func(t *testing.T) {
		t.Setenv("PROXY_SECRET", "s3cret")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", " 123, 456 ")
		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, []int64{123, 456}, cfg.TelegramAllowedUserIDs)
	})

	t.Run("bad allowed user id rejected", func(t *testing.T) {
		t.Setenv("PROXY_SECRET", "s3cret")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "abc")
		_, err := NewFromEnv()
		assert.Error(t, err)
	})
}

func TestAIConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"gemini with key", Config{AIProvider: ProviderGemini, GeminiAPIKey: "k"}, true},
		{"gemini without key", Config{AIProvider: ProviderGemini}, false},
		{"custom complete", Config{AIProvider: ProviderCustom, CustomEndpoint: "https://x", CustomAPIKey: "k"}, true},
		{"custom missing key", Config{AIProvider: ProviderCustom, CustomEndpoint: "https://x"}, false},
		{"unknown provider", Config{AIProvider: "other", GeminiAPIKey: "k"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.AIConfigured())
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.ValidateProxyServer())
	assert.Error(t, cfg.ValidateBot())

	cfg.UpstreamURL = "https://upstream"
	cfg.UpstreamCookie = "session=x"
	assert.NoError(t, cfg.ValidateProxyServer())

	cfg.TelegramBotToken = "t"
	cfg.TelegramWebhookURL = "https://hook"
	assert.NoError(t, cfg.ValidateBot())
}
