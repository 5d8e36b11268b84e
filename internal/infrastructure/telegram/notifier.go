package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier announces published articles to a Telegram chat via the bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at a different bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// NotifyPublished posts the article title and its canonical link.
func (n *Notifier) NotifyPublished(ctx context.Context, article domain.Article, link string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatMessage(article, link))
	form.Set("disable_web_page_preview", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatMessage(article domain.Article, link string) string {
	var b strings.Builder
	b.WriteString(article.Title)
	if article.TLDR != nil && *article.TLDR != "" {
		b.WriteString("\n\n")
		b.WriteString(*article.TLDR)
	}
	b.WriteString("\n")
	b.WriteString(link)
	return b.String()
}
