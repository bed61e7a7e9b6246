package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lorrc/ticket-triage/internal/adapters/secondary/llm"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingServer serves a fixed response and captures the decoded request body.
func recordingServer(t *testing.T, status int, response string) (*httptest.Server, *map[string]any, *string) {
	t.Helper()
	var (
		body map[string]any
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &path
}

func chatCompletion(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "llama-3.3-70b-versatile",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func anthropicMessage(text string) string {
	payload := map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-haiku-latest",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestNew_WithoutAPIKey(t *testing.T) {
	client, err := llm.New(llm.Config{Provider: llm.ProviderGroq}, discardLogger())
	require.NoError(t, err)

	assert.False(t, client.Configured())
	_, err = client.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, apperrors.ErrLLMNotConfigured)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := llm.New(llm.Config{Provider: "mistral", APIKey: "k"}, discardLogger())
	assert.ErrorContains(t, err, "unsupported llm provider")
}

func TestOpenAICompatibleClient_Complete(t *testing.T) {
	reply := `{"suggested_category": "billing", "suggested_priority": "high"}`

	t.Run("sends the expected request", func(t *testing.T) {
		srv, body, path := recordingServer(t, http.StatusOK, chatCompletion(reply))
		client, err := llm.New(llm.Config{
			Provider:    llm.ProviderGroq,
			APIKey:      "test-key",
			BaseURL:     srv.URL,
			Temperature: 0.1,
			MaxTokens:   100,
			Timeout:     2 * time.Second,
		}, discardLogger())
		require.NoError(t, err)
		require.True(t, client.Configured())

		content, err := client.Complete(context.Background(), "system text", "user text")

		require.NoError(t, err)
		assert.Equal(t, reply, content)
		assert.Equal(t, "/chat/completions", *path)

		req := *body
		assert.Equal(t, llm.DefaultModel, req["model"])
		assert.InDelta(t, 0.1, req["temperature"], 1e-9)
		assert.EqualValues(t, 100, req["max_tokens"])
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		messages, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "system text", messages[0].(map[string]any)["content"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
		assert.Equal(t, "user text", messages[1].(map[string]any)["content"])
	})

	t.Run("json schema response format", func(t *testing.T) {
		srv, body, _ := recordingServer(t, http.StatusOK, chatCompletion(reply))
		client, err := llm.New(llm.Config{
			Provider:       llm.ProviderOpenAI,
			APIKey:         "test-key",
			BaseURL:        srv.URL,
			Model:          "gpt-4o-mini",
			ResponseFormat: llm.ResponseFormatJSONSchema,
		}, discardLogger())
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), "s", "u")
		require.NoError(t, err)

		req := *body
		assert.Equal(t, "gpt-4o-mini", req["model"])
		format, ok := req["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_schema", format["type"])
		schema, ok := format["json_schema"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ticket_classification", schema["name"])
		assert.Equal(t, true, schema["strict"])
	})

	t.Run("error status is an error", func(t *testing.T) {
		srv, _, _ := recordingServer(t, http.StatusBadGateway, `{"error": {"message": "upstream down"}}`)
		client, err := llm.New(llm.Config{APIKey: "test-key", BaseURL: srv.URL}, discardLogger())
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), "s", "u")

		assert.Error(t, err)
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		srv, _, _ := recordingServer(t, http.StatusOK, chatCompletion("  "))
		client, err := llm.New(llm.Config{APIKey: "test-key", BaseURL: srv.URL}, discardLogger())
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), "s", "u")

		assert.ErrorIs(t, err, apperrors.ErrEmptyCompletion)
	})
}

func TestAnthropicClient_Complete(t *testing.T) {
	reply := `{"suggested_category": "technical", "suggested_priority": "low"}`

	t.Run("sends the expected request", func(t *testing.T) {
		srv, body, path := recordingServer(t, http.StatusOK, anthropicMessage(reply))
		client, err := llm.New(llm.Config{
			Provider:    llm.ProviderAnthropic,
			APIKey:      "test-key",
			BaseURL:     srv.URL,
			Temperature: 0.1,
			MaxTokens:   100,
		}, discardLogger())
		require.NoError(t, err)

		content, err := client.Complete(context.Background(), "system text", "user text")

		require.NoError(t, err)
		assert.Equal(t, reply, content)
		assert.Equal(t, "/v1/messages", *path)

		req := *body
		assert.Equal(t, "claude-3-5-haiku-latest", req["model"])
		assert.InDelta(t, 0.1, req["temperature"], 1e-9)
		assert.EqualValues(t, 100, req["max_tokens"])

		system, ok := req["system"].([]any)
		require.True(t, ok)
		require.Len(t, system, 1)
		assert.Equal(t, "system text", system[0].(map[string]any)["text"])

		messages, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		srv, _, _ := recordingServer(t, http.StatusOK, anthropicMessage(""))
		client, err := llm.New(llm.Config{
			Provider: llm.ProviderAnthropic,
			APIKey:   "test-key",
			BaseURL:  srv.URL,
		}, discardLogger())
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), "s", "u")

		assert.ErrorIs(t, err, apperrors.ErrEmptyCompletion)
	})

	t.Run("error status is an error", func(t *testing.T) {
		srv, _, _ := recordingServer(t, http.StatusInternalServerError,
			`{"type": "error", "error": {"type": "api_error", "message": "boom"}}`)
		client, err := llm.New(llm.Config{
			Provider: llm.ProviderAnthropic,
			APIKey:   "test-key",
			BaseURL:  srv.URL,
		}, discardLogger())
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), "s", "u")

		assert.Error(t, err)
	})
}

func TestClassificationSchema(t *testing.T) {
	raw, err := json.Marshal(llm.ClassificationSchema())
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []any{"suggested_category", "suggested_priority"}, schema["required"])

	props := schema["properties"].(map[string]any)
	category := props["suggested_category"].(map[string]any)
	assert.ElementsMatch(t, []any{"billing", "technical", "account", "general"}, category["enum"])
	priority := props["suggested_priority"].(map[string]any)
	assert.ElementsMatch(t, []any{"low", "medium", "high", "critical"}, priority["enum"])
}
