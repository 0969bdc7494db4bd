package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

const maxTokens = 8192

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	model  string
	client sdk.Client
}

// NewProvider builds a provider. Retries are left to the evaluation queue.
func NewProvider(cfg config.AnthropicConfig, opts ...option.RequestOption) *Provider {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		u := cfg.BaseURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		base = append(base, option.WithBaseURL(u))
	}
	return &Provider{
		model:  cfg.Model,
		client: sdk.NewClient(append(base, opts...)...),
	}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(p.model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(0.1),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic messages: no text content in response")
	}
	return sb.String(), nil
}

var _ models.AIProvider = (*Provider)(nil)
