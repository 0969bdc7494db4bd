package vllm

import (
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kiranshivaraju/repograder/internal/ai/openai"
	"github.com/kiranshivaraju/repograder/internal/config"
)

// NewProvider returns a provider for a vLLM server's OpenAI-compatible API.
// vLLM does not check the API key unless started with --api-key.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	oc := goopenai.DefaultConfig("EMPTY")
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	return openai.NewCompatible("vllm", cfg.Model, oc)
}
