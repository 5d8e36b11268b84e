package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinMuse/internal/config"
	"FinMuse/internal/domain"
)

func TestOpenAIClientComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"tl_dr\":\"ok\"}"}}]
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.LLMConfig{
		OpenAIKey:     "sk-test",
		OpenAIBaseURL: server.URL + "/v1/",
		Timeout:       5 * time.Second,
	})

	got, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"tl_dr":"ok"}`, got)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 500, body["max_tokens"])
	assert.EqualValues(t, 0, body["temperature"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClientNon200IsUnavailable(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.LLMConfig{OpenAIKey: "k", OpenAIBaseURL: server.URL + "/v1/"})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLLMUnavailable))
	assert.Equal(t, 1, calls)
}

func TestOpenAIClientEmptyContentIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.LLMConfig{OpenAIKey: "k", OpenAIBaseURL: server.URL + "/v1/"})

	_, err := client.Complete(context.Background(), "s", "u")
	assert.True(t, errors.Is(err, domain.ErrLLMUnavailable))
}

func TestAnthropicClientComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "not json"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(config.LLMConfig{AnthropicKey: "ak-test", AnthropicBaseURL: server.URL + "/"})

	got, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "not json", got)
	assert.Equal(t, ProviderAnthropic, client.Name())
}
