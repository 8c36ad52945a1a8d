package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-order-assistant/internal/config"
)

func customFor(url string) TextGenerator {
	return NewCustomClient(&config.Config{
		CustomEndpoint: url,
		CustomAPIKey:   "test-key",
		CustomModel:    "test-model",
	})
}

func TestCustomClientGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"orders\": []}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	defer srv.Close()

	resp, err := customFor(srv.URL).GenerateContent(context.Background(), "plan my week")
	require.NoError(t, err)
	assert.Equal(t, `{"orders": []}`, resp.Content)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)
	assert.Equal(t, "test-model", resp.Usage.Model)
}

func TestCustomClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	_, err := customFor(srv.URL).GenerateContent(context.Background(), "plan my week")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestCustomClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := customFor(srv.URL).GenerateContent(context.Background(), "plan my week")
	assert.Error(t, err)
}
