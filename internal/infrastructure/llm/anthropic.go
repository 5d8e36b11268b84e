package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"FinMuse/internal/config"
	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

// AnthropicClient implements ports.ChatCompleter on the messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ ports.ChatCompleter = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg config.LLMConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout(cfg)),
	}
	if cfg.AnthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     modelOrDefault(cfg.Model, defaultAnthropicModel),
		maxTokens: int64(maxTokensOrDefault(cfg.MaxTokens)),
	}
}

// Name identifies the provider inside the registry.
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// Complete sends the exchange and concatenates the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", domain.ErrLLMUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic returned no text", domain.ErrLLMUnavailable)
	}
	return sb.String(), nil
}
