package ports

import (
	"context"
	"time"

	"FinMuse/internal/domain"
)

// NewsSource pulls raw headlines from an upstream provider.
type NewsSource interface {
	FetchHeadlines(ctx context.Context, pageSize int) ([]domain.RawArticle, error)
}

// ArticleRepository persists articles and their summaries.
type ArticleRepository interface {
	InsertArticle(ctx context.Context, article domain.Article) (bool, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	UpdateSummary(ctx context.Context, id string, summary domain.Summary, status domain.Status) error
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error)
	ListPublished(ctx context.Context, limit int) ([]domain.Article, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
}

// MetaStore holds scalar key/value settings.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// QuotaStore tracks the daily LLM call counter. Both calls reset the counter
// first when the stored reset date differs from today.
type QuotaStore interface {
	LLMCallsToday(ctx context.Context, today string) (int, error)
	IncrementLLMCalls(ctx context.Context, today string) (int, error)
}

// ChatCompleter sends one system+user exchange to an LLM and returns the raw
// message content. Transport failures, non-200 responses and empty bodies are
// reported as domain.ErrLLMUnavailable.
type ChatCompleter interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summarizer produces the summary fields for one article.
type Summarizer interface {
	Summarize(ctx context.Context, title, rawText string) (domain.Summary, error)
}

// Publisher renders static artifacts.
type Publisher interface {
	RenderArticle(article domain.Article) (string, error)
	RegenerateIndices(ctx context.Context) error
	ArticleURL(id string) string
}

// Notifier announces newly published articles.
type Notifier interface {
	NotifyPublished(ctx context.Context, article domain.Article, url string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
