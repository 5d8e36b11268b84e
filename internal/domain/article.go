package domain

import "time"

// TimeLayout is the fixed-width UTC ISO-8601 layout used for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// PublishThreshold splits processed articles into published and draft.
const PublishThreshold = 0.5

// Status enumerates the article lifecycle.
type Status string

const (
	StatusNew       Status = "new"
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
)

// StatusFor maps a summarizer confidence onto the terminal status.
func StatusFor(confidence float64) Status {
	if confidence >= PublishThreshold {
		return StatusPublished
	}
	return StatusDraft
}

// Evidence is a single citation attached to a generated summary.
type Evidence struct {
	Source string `json:"source"`
	Quote  string `json:"quote"`
	URL    string `json:"url"`
}

// Article is one ingested news item as stored in the articles table.
type Article struct {
	ID          string
	Title       string
	Source      string
	OriginalURL string
	PublishedAt string
	RawText     string
	TLDR        *string
	SummaryPro  *string
	Evidence    []Evidence
	Confidence  *float64
	Status      Status
	CreatedAt   string
}

// PublishedOrCreated returns the date used for sitemap lastmod and RSS pubDate.
func (a Article) PublishedOrCreated() string {
	if a.PublishedAt != "" {
		return a.PublishedAt
	}
	return a.CreatedAt
}

// RawArticle is an upstream headline before it is persisted.
type RawArticle struct {
	Title       string
	URL         string
	Source      string
	PublishedAt string
	Content     string
}

// Summary is the summarizer output for one article.
type Summary struct {
	TLDR       string
	Long       string
	Evidence   []Evidence
	Confidence float64
}

// FormatTime renders t in the storage layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
