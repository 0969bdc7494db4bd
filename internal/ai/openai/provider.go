package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// Provider implements models.AIProvider using the OpenAI chat completions API.
// It also serves any OpenAI-compatible endpoint via BaseURL.
type Provider struct {
	name   string
	model  string
	client *goopenai.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewCompatible("openai", cfg.Model, oc)
}

// NewCompatible builds a provider for an OpenAI-compatible server under a different name.
func NewCompatible(name, model string, oc goopenai.ClientConfig) *Provider {
	return &Provider{name: name, model: model, client: goopenai.NewClientWithConfig(oc)}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.1,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices in response", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
