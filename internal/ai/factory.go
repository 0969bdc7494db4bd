package ai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/repograder/internal/ai/anthropic"
	"github.com/kiranshivaraju/repograder/internal/ai/gemini"
	"github.com/kiranshivaraju/repograder/internal/ai/ollama"
	"github.com/kiranshivaraju/repograder/internal/ai/openai"
	"github.com/kiranshivaraju/repograder/internal/ai/vllm"
	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Gemini)
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
