package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinMuse/internal/domain"
)

type fakeLister struct {
	rows []domain.Article
	err  error
}

func (f *fakeLister) ListPublished(_ context.Context, limit int) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func strPtr(s string) *string { return &s }

func publishedRow(i int) domain.Article {
	conf := 0.9
	return domain.Article{
		ID:          fmt.Sprintf("id-%03d", i),
		Title:       fmt.Sprintf("Headline %d & co", i),
		Source:      "Reuters",
		PublishedAt: fmt.Sprintf("2024-05-%02dT10:00:00.000000Z", 1+i%28),
		Confidence:  &conf,
		Status:      domain.StatusPublished,
	}
}

func TestArticleURLTrimsSlash(t *testing.T) {
	t.Parallel()

	p := NewStaticPublisher(t.TempDir(), "https://finmuse.example/", nil, nil)
	assert.Equal(t, "https://finmuse.example/articles/abc.html", p.ArticleURL("abc"))
}

func TestRenderArticle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewStaticPublisher(dir, "https://finmuse.example", nil, nil)
	conf := 0.8
	article := domain.Article{
		ID:          "a1",
		Title:       "Fed cuts <script>alert(1)</script>rates",
		Source:      "Reuters",
		PublishedAt: "2024-05-02T10:00:00.000000Z",
		TLDR:        strPtr("Short take."),
		SummaryPro:  strPtr("Long analysis of the cut."),
		Evidence: []domain.Evidence{
			{Source: "Fed", Quote: "rates <lower>", URL: "https://fed.example/x?a=1&b=2"},
		},
		Confidence: &conf,
		Status:     domain.StatusPublished,
	}

	path, err := p.RenderArticle(article)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "articles", "a1.html"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<!doctype html><html lang='ko'>"))
	assert.Contains(t, string(raw), `"rates &lt;lower&gt;"`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find("script").Length())
	assert.Equal(t, "application/ld+json", doc.Find("script").AttrOr("type", ""))
	assert.Contains(t, doc.Find("script").Text(), `"@type":"NewsArticle"`)
	assert.Contains(t, doc.Find("title").Text(), "| FinMuse")

	canonical, _ := doc.Find("link[rel=canonical]").Attr("href")
	assert.Equal(t, "https://finmuse.example/articles/a1.html", canonical)

	desc, _ := doc.Find("meta[name=description]").Attr("content")
	assert.Equal(t, "Long analysis of the cut.", desc)

	assert.Equal(t, "Short take.", doc.Find("section.tl-dr p").Text())
	assert.Equal(t, "Long analysis of the cut.", doc.Find("section.pro p").Text())

	items := doc.Find("section.evidence li")
	require.Equal(t, 1, items.Length())
	href, _ := items.Find("a").Attr("href")
	assert.Equal(t, "https://fed.example/x?a=1&b=2", href)
	assert.Contains(t, items.Text(), `Fed: "rates <lower>"`)
}

func TestRenderArticleDropsUnsafeEvidenceLinks(t *testing.T) {
	t.Parallel()

	p := NewStaticPublisher(t.TempDir(), "https://finmuse.example", nil, nil)
	path, err := p.RenderArticle(domain.Article{
		ID:    "c3",
		Title: "T",
		TLDR:  strPtr("s"),
		Evidence: []domain.Evidence{
			{Source: "Safe", Quote: "ok", URL: "https://reuters.example/a"},
			{Source: "Script", Quote: "bad", URL: "javascript:alert(document.cookie)"},
			{Source: "Data", Quote: "bad", URL: "data:text/html;base64,PHNjcmlwdD4="},
			{Source: "Quoted", Quote: "bad", URL: "https://x.example/' onmouseover='alert(1)"},
		},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "javascript:")
	assert.NotContains(t, string(raw), "data:text/html")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	require.NoError(t, err)

	items := doc.Find("section.evidence li")
	require.Equal(t, 4, items.Length())

	href, ok := items.Eq(0).Find("a").Attr("href")
	require.True(t, ok)
	assert.Equal(t, "https://reuters.example/a", href)
	assert.Equal(t, "_blank", items.Eq(0).Find("a").AttrOr("target", ""))

	assert.Equal(t, 0, items.Eq(1).Find("a[href]").Length())
	assert.Equal(t, 0, items.Eq(2).Find("a[href]").Length())
	assert.Equal(t, 0, items.Eq(3).Find("a[onmouseover]").Length())
	assert.Contains(t, items.Eq(1).Text(), `Script: "bad"`)
}

func TestRenderArticleFallsBackToTLDR(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewStaticPublisher(dir, "http://localhost:8000", nil, nil)

	path, err := p.RenderArticle(domain.Article{ID: "b2", Title: "T", CreatedAt: "2024-05-01T00:00:00.000000Z", TLDR: strPtr("Only short.")})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, "Only short.", doc.Find("section.pro p").Text())
	assert.Contains(t, doc.Find("div.meta").Text(), "2024-05-01T00:00:00.000000Z")
	assert.Equal(t, 0, doc.Find("section.evidence li").Length())
}

func TestRenderArticleRequiresID(t *testing.T) {
	t.Parallel()

	p := NewStaticPublisher(t.TempDir(), "http://localhost", nil, nil)
	_, err := p.RenderArticle(domain.Article{Title: "x"})
	assert.Error(t, err)
}

func TestRegenerateIndices(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rows := []domain.Article{publishedRow(2), publishedRow(1)}
	p := NewStaticPublisher(dir, "https://finmuse.example", &fakeLister{rows: rows}, nil)

	require.NoError(t, p.RegenerateIndices(context.Background()))

	sitemap, err := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	require.NoError(t, err)
	lines := strings.Split(string(sitemap), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>`, lines[0])
	assert.Equal(t, "<url><loc>https://finmuse.example/articles/id-002.html</loc><lastmod>2024-05-03T10:00:00.000000Z</lastmod></url>", lines[2])
	assert.Equal(t, "</urlset>", lines[4])

	rss, err := os.ReadFile(filepath.Join(dir, "rss.xml"))
	require.NoError(t, err)
	feed, err := gofeed.NewParser().ParseString(string(rss))
	require.NoError(t, err)
	assert.Equal(t, "FinMuse", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Headline 2 & co", feed.Items[0].Title)
	assert.Equal(t, "https://finmuse.example/articles/id-002.html", feed.Items[0].Link)
	require.NotNil(t, feed.Items[0].PublishedParsed)
	assert.Equal(t, 3, feed.Items[0].PublishedParsed.Day())
}

func TestRegenerateIndicesIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewStaticPublisher(dir, "https://finmuse.example", &fakeLister{rows: []domain.Article{publishedRow(1)}}, nil)

	require.NoError(t, p.RegenerateIndices(context.Background()))
	firstSitemap, _ := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	firstRSS, _ := os.ReadFile(filepath.Join(dir, "rss.xml"))

	require.NoError(t, p.RegenerateIndices(context.Background()))
	secondSitemap, _ := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	secondRSS, _ := os.ReadFile(filepath.Join(dir, "rss.xml"))

	assert.Equal(t, firstSitemap, secondSitemap)
	assert.Equal(t, firstRSS, secondRSS)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRSSCapsItems(t *testing.T) {
	t.Parallel()

	rows := make([]domain.Article, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, publishedRow(i))
	}
	dir := t.TempDir()
	p := NewStaticPublisher(dir, "https://finmuse.example", &fakeLister{rows: rows}, nil)
	require.NoError(t, p.RegenerateIndices(context.Background()))

	sitemap, _ := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	assert.Equal(t, 60, strings.Count(string(sitemap), "<url>"))

	rss, _ := os.ReadFile(filepath.Join(dir, "rss.xml"))
	assert.Equal(t, 50, strings.Count(string(rss), "<item>"))
}

func TestRegenerateIndicesPropagatesStoreError(t *testing.T) {
	t.Parallel()

	p := NewStaticPublisher(t.TempDir(), "https://finmuse.example", &fakeLister{err: errors.New("db down")}, nil)
	assert.Error(t, p.RegenerateIndices(context.Background()))
}

func TestRSSDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Thu, 02 May 2024 10:00:00 +0000", rssDate("2024-05-02T10:00:00.000000Z"))
	assert.Equal(t, "Thu, 02 May 2024 10:00:00 +0000", rssDate("2024-05-02T10:00:00Z"))
	assert.Equal(t, "yesterday", rssDate("yesterday"))
}
