package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/repograder/internal/config"
)

const okMessage = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "stop_reason": "end_turn",
  "content": [
    {"type": "text", "text": "{\"criterionScores\":"},
    {"type": "text", "text": "[]}"}
  ],
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, maxTokens, req.MaxTokens)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okMessage))
	}))
	defer srv.Close()

	p := NewProvider(config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-test", BaseURL: srv.URL})
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-test", p.Model())

	out, err := p.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `{"criterionScores":[]}`, out)
}

func TestGenerate_APIErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewProvider(config.AnthropicConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)

	var apiErr *sdk.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestGenerate_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_02","type":"message","role":"assistant","model":"m","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer srv.Close()

	_, err := NewProvider(config.AnthropicConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}
