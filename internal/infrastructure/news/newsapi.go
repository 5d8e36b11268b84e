package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FinMuse/internal/config"
	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

const defaultBaseURL = "https://newsapi.org/v2/top-headlines"

// NewsAPIClient pulls business top headlines from newsapi.org.
type NewsAPIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.NewsSource = (*NewsAPIClient)(nil)

// NewNewsAPIClient wires an HTTP client; a nil client gets the configured timeout.
func NewNewsAPIClient(cfg config.NewsConfig, client *http.Client, log *slog.Logger) *NewsAPIClient {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &NewsAPIClient{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  log,
		now:     time.Now,
	}
}

// FetchHeadlines returns the current headlines. A missing API key yields no
// items and no error; upstream failures are wrapped in domain.ErrFetchFailed.
func (c *NewsAPIClient) FetchHeadlines(ctx context.Context, pageSize int) ([]domain.RawArticle, error) {
	if c.apiKey == "" {
		c.debug("news api key not configured, skipping fetch")
		return nil, nil
	}

	reqURL, err := buildHeadlinesURL(c.baseURL, pageSize, c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "FinMuse/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request headlines: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("%w: newsapi returned %s: %s", domain.ErrFetchFailed, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var payload headlinesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode headlines: %v", domain.ErrFetchFailed, err)
	}

	articles := make([]domain.RawArticle, 0, len(payload.Articles))
	for _, item := range payload.Articles {
		articles = append(articles, c.toRawArticle(item))
	}
	c.debug("headlines fetched", "count", len(articles))
	return articles, nil
}

func (c *NewsAPIClient) toRawArticle(item headline) domain.RawArticle {
	published := item.PublishedAt
	if published == "" {
		published = domain.FormatTime(c.now())
	}

	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	if raw == "" {
		raw = item.Title
	}

	return domain.RawArticle{
		Title:       item.Title,
		URL:         item.URL,
		Source:      sourceName(item.Source),
		PublishedAt: published,
		Content:     plainText(raw),
	}
}

// sourceName accepts both {"name": "..."} objects and bare strings.
func sourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown"
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return "unknown"
}

// plainText drops any markup NewsAPI leaves in content snippets.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func buildHeadlinesURL(base string, pageSize int, apiKey string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid headlines url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("category", "business")
	query.Set("pageSize", strconv.Itoa(pageSize))
	query.Set("apiKey", apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *NewsAPIClient) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

type headlinesResponse struct {
	Status   string     `json:"status"`
	Articles []headline `json:"articles"`
}

type headline struct {
	Source      json.RawMessage `json:"source"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	PublishedAt string          `json:"publishedAt"`
	Content     string          `json:"content"`
	Description string          `json:"description"`
}
