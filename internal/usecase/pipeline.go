package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinMuse/internal/domain"
	"FinMuse/internal/metrics"
	"FinMuse/internal/ports"
)

const (
	defaultPageSize  = 20
	defaultBatchSize = 20
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.NewsSource
	Repository ports.ArticleRepository
	Summarizer ports.Summarizer
	Publisher  ports.Publisher
	Notifier   ports.Notifier
	Logger     *slog.Logger
	PageSize   int
	BatchSize  int
	Now        func() time.Time
	NewID      func() string
}

// Pipeline implements the fetch, summarize and publish cycle.
type Pipeline struct {
	source     ports.NewsSource
	repository ports.ArticleRepository
	summarizer ports.Summarizer
	publisher  ports.Publisher
	notifier   ports.Notifier
	logger     *slog.Logger
	pageSize   int
	batchSize  int
	now        func() time.Time
	newID      func() string

	// mu keeps cycles from overlapping so each row is summarized once.
	mu sync.Mutex
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		summarizer: deps.Summarizer,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		pageSize:   deps.PageSize,
		batchSize:  deps.BatchSize,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.pageSize <= 0 {
		p.pageSize = defaultPageSize
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// RunCycle fetches headlines, stores new ones and processes the oldest
// unprocessed rows. Per-item failures are counted in the report; only a
// failure to read the backlog aborts the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := domain.CycleReport{StartedAt: p.now().UTC()}
	start := time.Now()

	err := p.runCycle(ctx, &report)
	report.Duration = time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RecordCycle(result, report.Duration)

	if err != nil {
		p.logger.Error("pipeline cycle failed", "error", err)
		return report, err
	}

	p.logger.Info("pipeline cycle finished",
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"processed", report.Processed,
		"published", report.Published,
		"drafted", report.Drafted,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

// Reindex regenerates the sitemap and feed without touching articles.
func (p *Pipeline) Reindex(ctx context.Context) error {
	if p.publisher == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publisher.RegenerateIndices(ctx)
}

func (p *Pipeline) runCycle(ctx context.Context, report *domain.CycleReport) error {
	if p.repository == nil || p.summarizer == nil {
		return errors.New("pipeline is missing repository or summarizer")
	}

	items := p.fetch(ctx)
	if len(items) == 0 {
		items = []domain.RawArticle{domain.SampleArticle(p.now())}
		report.UsedSample = true
	}
	report.Fetched = len(items)

	for _, item := range items {
		p.ingest(ctx, item, report)
	}
	metrics.RecordIngested(report.Inserted)

	rows, err := p.repository.ListByStatus(ctx, domain.StatusNew, p.batchSize)
	if err != nil {
		return fmt.Errorf("%w: list new articles: %v", domain.ErrStore, err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, processed, err := p.process(ctx, row)
		if processed {
			report.Processed++
			if status == domain.StatusPublished {
				report.Published++
			} else {
				report.Drafted++
			}
		}
		if err != nil {
			report.Failed++
			p.logger.Error("process article failed", "article_id", row.ID, "url", row.OriginalURL, "error", err)
		}
	}

	return nil
}

func (p *Pipeline) fetch(ctx context.Context) []domain.RawArticle {
	if p.source == nil {
		return nil
	}
	items, err := p.source.FetchHeadlines(ctx, p.pageSize)
	if err != nil {
		metrics.RecordFetchError()
		p.logger.Warn("fetch headlines failed", "error", err)
		return nil
	}
	return items
}

func (p *Pipeline) ingest(ctx context.Context, item domain.RawArticle, report *domain.CycleReport) {
	if item.URL == "" {
		report.Skipped++
		return
	}

	exists, err := p.repository.ExistsByURL(ctx, item.URL)
	if err != nil {
		report.InsertErrors++
		p.logger.Error("dedupe lookup failed", "url", item.URL, "error", err)
		return
	}
	if exists {
		report.Duplicates++
		return
	}

	inserted, err := p.repository.InsertArticle(ctx, domain.Article{
		ID:          p.newID(),
		Title:       item.Title,
		Source:      item.Source,
		OriginalURL: item.URL,
		PublishedAt: item.PublishedAt,
		RawText:     item.Content,
		Status:      domain.StatusNew,
		CreatedAt:   domain.FormatTime(p.now()),
	})
	switch {
	case err != nil:
		report.InsertErrors++
		p.logger.Error("insert article failed", "url", item.URL, "error", err)
	case !inserted:
		report.Duplicates++
	default:
		report.Inserted++
	}
}

// process summarizes one row and persists the result. processed reports
// whether the row left status new; err may still be set for a later step.
func (p *Pipeline) process(ctx context.Context, row domain.Article) (domain.Status, bool, error) {
	summary, err := p.summarizer.Summarize(ctx, row.Title, row.RawText)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrSummarizeFailed, err)
	}

	status := domain.StatusFor(summary.Confidence)
	if err := p.repository.UpdateSummary(ctx, row.ID, summary, status); err != nil {
		return "", false, fmt.Errorf("%w: update summary: %v", domain.ErrStore, err)
	}
	metrics.RecordProcessed(string(status))

	if p.publisher == nil {
		return status, true, nil
	}

	if status == domain.StatusPublished {
		article := withSummary(row, summary, status)
		if _, err := p.publisher.RenderArticle(article); err != nil {
			return status, true, fmt.Errorf("render article: %w", err)
		}
		p.notify(ctx, article)
	}

	if err := p.publisher.RegenerateIndices(ctx); err != nil {
		return status, true, fmt.Errorf("regenerate indices: %w", err)
	}
	return status, true, nil
}

func (p *Pipeline) notify(ctx context.Context, article domain.Article) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyPublished(ctx, article, p.publisher.ArticleURL(article.ID)); err != nil {
		p.logger.Warn("notify published failed", "article_id", article.ID, "error", err)
	}
}

func withSummary(row domain.Article, summary domain.Summary, status domain.Status) domain.Article {
	tldr, long, conf := summary.TLDR, summary.Long, summary.Confidence
	row.TLDR = &tldr
	row.SummaryPro = &long
	row.Evidence = summary.Evidence
	row.Confidence = &conf
	row.Status = status
	return row
}
