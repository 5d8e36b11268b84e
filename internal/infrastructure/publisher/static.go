package publisher

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

const (
	indexRows     = 1000
	rssItems      = 50
	siteName      = "FinMuse"
	articlesDir   = "articles"
	sitemapFile   = "sitemap.xml"
	rssFile       = "rss.xml"
	descChars     = 160
	ogDescChars   = 200
	bodyLDChars   = 4000
	sitemapHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
)

// PublishedLister is the read side the publisher needs from storage.
type PublishedLister interface {
	ListPublished(ctx context.Context, limit int) ([]domain.Article, error)
}

// StaticPublisher writes article pages, the sitemap and the RSS feed under a
// static root.
type StaticPublisher struct {
	dir    string
	domain string
	store  PublishedLister
	policy *bluemonday.Policy
	links  *bluemonday.Policy
	logger *slog.Logger
}

var _ ports.Publisher = (*StaticPublisher)(nil)

// NewStaticPublisher builds a publisher rooted at dir with canonical links on siteDomain.
func NewStaticPublisher(dir, siteDomain string, store PublishedLister, log *slog.Logger) *StaticPublisher {
	return &StaticPublisher{
		dir:    dir,
		domain: strings.TrimRight(siteDomain, "/"),
		store:  store,
		policy: bluemonday.StrictPolicy(),
		links:  linkPolicy(),
		logger: log,
	}
}

// linkPolicy keeps only absolute http(s) anchors; any other href is dropped
// together with the <a> wrapper.
func linkPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// ArticleURL returns the canonical URL of an article page.
func (p *StaticPublisher) ArticleURL(id string) string {
	return fmt.Sprintf("%s/%s/%s.html", p.domain, articlesDir, id)
}

// ArticlePath returns the file path of an article page.
func (p *StaticPublisher) ArticlePath(id string) string {
	return filepath.Join(p.dir, articlesDir, id+".html")
}

type publisherLD struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type newsArticleLD struct {
	Context          string      `json:"@context"`
	Type             string      `json:"@type"`
	Headline         string      `json:"headline"`
	DatePublished    string      `json:"datePublished"`
	MainEntityOfPage string      `json:"mainEntityOfPage"`
	Publisher        publisherLD `json:"publisher"`
	ArticleBody      string      `json:"articleBody"`
}

// RenderArticle writes the article page and returns its path.
func (p *StaticPublisher) RenderArticle(article domain.Article) (string, error) {
	if article.ID == "" {
		return "", fmt.Errorf("render article: empty id")
	}

	tldr := deref(article.TLDR)
	summary := deref(article.SummaryPro)
	if summary == "" {
		summary = tldr
	}
	published := article.PublishedOrCreated()
	url := p.ArticleURL(article.ID)

	ld, err := json.Marshal(newsArticleLD{
		Context:          "https://schema.org",
		Type:             "NewsArticle",
		Headline:         article.Title,
		DatePublished:    published,
		MainEntityOfPage: url,
		Publisher:        publisherLD{Type: "Organization", Name: siteName},
		ArticleBody:      truncateRunes(summary, bodyLDChars),
	})
	if err != nil {
		return "", fmt.Errorf("marshal json-ld: %w", err)
	}

	title := p.clean(article.Title)
	cleanSummary := p.clean(summary)

	var b strings.Builder
	b.WriteString("<!doctype html>")
	b.WriteString("<html lang='ko'><head>")
	b.WriteString("<meta charset='utf-8'/>")
	b.WriteString("<meta name='viewport' content='width=device-width,initial-scale=1'/>")
	fmt.Fprintf(&b, "<title>%s | %s</title>", title, siteName)
	fmt.Fprintf(&b, "<meta name='description' content='%s'/>", p.clean(truncateRunes(summary, descChars)))
	fmt.Fprintf(&b, "<link rel='canonical' href='%s'/>", html.EscapeString(url))
	fmt.Fprintf(&b, "<meta property='og:title' content='%s'/>", title)
	fmt.Fprintf(&b, "<meta property='og:description' content='%s'/>", p.clean(truncateRunes(summary, ogDescChars)))
	b.WriteString("<script type='application/ld+json'>")
	b.Write(ld)
	b.WriteString("</script>")
	b.WriteString("<link rel='stylesheet' href='/static/style.css'>")
	b.WriteString("</head><body><main class='page'><article class='article'>")
	fmt.Fprintf(&b, "<h1>%s</h1>", title)
	fmt.Fprintf(&b, "<div class='meta'>Source: %s, Published: %s</div>", p.clean(article.Source), p.clean(published))
	fmt.Fprintf(&b, "<section class='tl-dr'><strong>요약:</strong><p>%s</p></section>", p.clean(tldr))
	fmt.Fprintf(&b, "<section class='pro'><strong>전문가 분석:</strong><p>%s</p></section>", cleanSummary)
	b.WriteString("<section class='evidence'><strong>근거:</strong><ul>")
	for _, ev := range article.Evidence {
		fmt.Fprintf(&b, "<li>%s: \"%s\" %s</li>",
			p.clean(ev.Source), escapeAngles(ev.Quote), p.sourceLink(ev.URL))
	}
	b.WriteString("</ul></section>")
	fmt.Fprintf(&b, "<footer class='footer'>%s - 자동 생성 리포트</footer>", siteName)
	b.WriteString("</article></main></body></html>")

	path := p.ArticlePath(article.ID)
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("write article %s: %w", article.ID, err)
	}
	return path, nil
}

// RegenerateIndices rewrites sitemap.xml and rss.xml from published rows.
func (p *StaticPublisher) RegenerateIndices(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("regenerate indices: no store configured")
	}

	rows, err := p.store.ListPublished(ctx, indexRows)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(p.dir, sitemapFile), p.sitemap(rows)); err != nil {
		return fmt.Errorf("write sitemap: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(p.dir, rssFile), p.rss(rows)); err != nil {
		return fmt.Errorf("write rss: %w", err)
	}

	if p.logger != nil {
		p.logger.Debug("indices regenerated", "articles", len(rows))
	}
	return nil
}

func (p *StaticPublisher) sitemap(rows []domain.Article) []byte {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, sitemapHeader)
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("<url><loc>%s</loc><lastmod>%s</lastmod></url>",
			xmlEscape(p.ArticleURL(row.ID)), xmlEscape(row.PublishedOrCreated())))
	}
	lines = append(lines, "</urlset>")
	return []byte(strings.Join(lines, "\n"))
}

func (p *StaticPublisher) rss(rows []domain.Article) []byte {
	if len(rows) > rssItems {
		rows = rows[:rssItems]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<?xml version='1.0' encoding='utf-8'?><rss version='2.0'><channel><title>%s</title>", siteName)
	for _, row := range rows {
		fmt.Fprintf(&b, "<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>",
			xmlEscape(row.Title), xmlEscape(p.ArticleURL(row.ID)), xmlEscape(rssDate(row.PublishedOrCreated())))
	}
	b.WriteString("</channel></rss>")
	return []byte(b.String())
}

func (p *StaticPublisher) sourceLink(raw string) string {
	return p.links.Sanitize(fmt.Sprintf(`<a href="%s">원문</a>`, html.EscapeString(raw)))
}

func (p *StaticPublisher) clean(s string) string {
	return p.policy.Sanitize(s)
}

// rssDate converts stored ISO timestamps to RFC 1123; anything else passes through.
func rssDate(s string) string {
	for _, layout := range []string{domain.TimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC1123Z)
		}
	}
	return s
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escapeAngles(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
