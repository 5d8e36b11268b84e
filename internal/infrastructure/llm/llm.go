// Package llm holds the chat-completion adapters used by the summarizer.
package llm

import "time"

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5"
	defaultMaxTokens      = 500
	defaultTimeout        = 30 * time.Second
)
