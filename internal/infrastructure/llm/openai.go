package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"FinMuse/internal/config"
	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

// OpenAIClient implements ports.ChatCompleter on the chat-completions API.
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int64
}

var _ ports.ChatCompleter = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration. SDK retries are off so a
// single Complete is a single upstream call.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout(cfg)),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     modelOrDefault(cfg.Model, defaultOpenAIModel),
		maxTokens: int64(maxTokensOrDefault(cfg.MaxTokens)),
	}
}

// Name identifies the provider inside the registry.
func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

// Complete sends the exchange with temperature 0 and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", domain.ErrLLMUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrLLMUnavailable)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("%w: openai returned empty content", domain.ErrLLMUnavailable)
	}
	return content, nil
}

func requestTimeout(cfg config.LLMConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultTimeout
}

func modelOrDefault(model, fallback string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return fallback
	}
	return model
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
