package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"FinMuse/internal/domain"
	"FinMuse/internal/metrics"
	"FinMuse/internal/ports"
)

const (
	systemPrompt = "You are a senior financial analyst. Output STRICT JSON only. " +
		"Keys: tl_dr, summary, impact_short, impact_mechanism, evidence (list of {source,quote,url}), confidence. " +
		"Do NOT invent facts."

	maxPromptChars    = 6000
	maxFallbackChars  = 700
	maxMalformedChars = 1200

	defaultConfidence   = 0.5
	malformedConfidence = 0.4
)

// SummarizerDeps wires the quota store and the optional LLM.
type SummarizerDeps struct {
	Quota     ports.QuotaStore
	Completer ports.ChatCompleter
	Limit     int
	Logger    *slog.Logger
	Now       func() time.Time
}

// RateLimitedSummarizer calls the LLM while the daily quota allows and falls
// back to a deterministic extract otherwise.
type RateLimitedSummarizer struct {
	quota     ports.QuotaStore
	completer ports.ChatCompleter
	limit     int
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.Summarizer = (*RateLimitedSummarizer)(nil)

// NewRateLimitedSummarizer builds the summarizer; a nil Completer disables the LLM path.
func NewRateLimitedSummarizer(deps SummarizerDeps) *RateLimitedSummarizer {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RateLimitedSummarizer{
		quota:     deps.Quota,
		completer: deps.Completer,
		limit:     deps.Limit,
		logger:    deps.Logger,
		now:       now,
	}
}

// Summarize returns tl;dr, long summary, evidence and confidence for one article.
func (s *RateLimitedSummarizer) Summarize(ctx context.Context, title, rawText string) (domain.Summary, error) {
	easy := FallbackSummary(rawText)
	fallback := domain.Summary{TLDR: easy, Long: easy, Evidence: []domain.Evidence{}, Confidence: defaultConfidence}

	if s.completer == nil || s.quota == nil {
		metrics.RecordLLMCall(metrics.LLMSkipped)
		return fallback, nil
	}

	today := s.today()
	calls, err := s.quota.LLMCallsToday(ctx, today)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("%w: read quota: %v", domain.ErrSummarizeFailed, err)
	}
	if calls >= s.limit {
		s.debug("daily llm quota exhausted", "calls", calls, "limit", s.limit)
		metrics.RecordLLMCall(metrics.LLMSkipped)
		return fallback, nil
	}

	userPrompt := fmt.Sprintf("Title: %s\nText:\n%s", title, truncateRunes(rawText, maxPromptChars))
	resp, err := s.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil || resp == "" {
		s.warn("llm unavailable, using fallback summary", "provider", s.completer.Name(), "error", err)
		metrics.RecordLLMCall(metrics.LLMUnavailable)
		return fallback, nil
	}

	summary, ok := parseLLMResponse(resp, easy)
	if ok {
		metrics.RecordLLMCall(metrics.LLMOK)
	} else {
		s.warn("llm returned malformed json", "provider", s.completer.Name())
		metrics.RecordLLMCall(metrics.LLMMalformed)
	}

	if _, err := s.quota.IncrementLLMCalls(ctx, today); err != nil {
		s.warn("increment llm quota failed", "error", err)
	}
	return summary, nil
}

// parseLLMResponse applies the field defaults to a JSON reply. ok is false when
// the reply is not a JSON object, in which case the raw text becomes the long
// summary at reduced confidence.
func parseLLMResponse(resp, easy string) (domain.Summary, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil || parsed == nil {
		return domain.Summary{
			TLDR:       easy,
			Long:       truncateRunes(strings.TrimSpace(resp), maxMalformedChars),
			Evidence:   []domain.Evidence{},
			Confidence: malformedConfidence,
		}, false
	}

	return domain.Summary{
		TLDR:       stringOr(parsed["tl_dr"], easy),
		Long:       stringOr(parsed["summary"], easy),
		Evidence:   evidenceFrom(parsed["evidence"]),
		Confidence: confidenceFrom(parsed["confidence"]),
	}, true
}

// FallbackSummary keeps the first two ". "-delimited segments of text.
func FallbackSummary(text string) string {
	if text == "" {
		return ""
	}
	parts := strings.Split(strings.ReplaceAll(text, "\n", " "), ". ")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return truncateRunes(strings.Join(parts, ". ")+".", maxFallbackChars)
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func evidenceFrom(v any) []domain.Evidence {
	evidence := []domain.Evidence{}
	if v == nil {
		return evidence
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return evidence
	}
	if err := json.Unmarshal(raw, &evidence); err != nil {
		return []domain.Evidence{}
	}
	return evidence
}

func confidenceFrom(v any) float64 {
	var c float64
	switch n := v.(type) {
	case float64:
		c = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return defaultConfidence
		}
		c = parsed
	default:
		return defaultConfidence
	}
	if math.IsNaN(c) {
		return defaultConfidence
	}

	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (s *RateLimitedSummarizer) today() string {
	return s.now().UTC().Format("2006-01-02")
}

func (s *RateLimitedSummarizer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *RateLimitedSummarizer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
