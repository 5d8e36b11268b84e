package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinMuse/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Database:  config.DatabaseConfig{Path: filepath.Join(dir, "finmuse.db")},
		Scheduler: config.SchedulerConfig{InitialDelay: time.Hour, Interval: time.Hour},
		News:      config.NewsConfig{PageSize: 20},
		LLM:       config.LLMConfig{Provider: "openai", DailyCallLimit: 100},
		Site:      config.SiteConfig{Domain: "https://finmuse.example/", StaticDir: filepath.Join(dir, "static")},
		HTTP:      config.HTTPConfig{Addr: "127.0.0.1:0", AdminSecret: "s3cret"},
		Logging:   config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T) (*Application, config.Config) {
	t.Helper()
	cfg := testConfig(t)
	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, cfg
}

func TestRunOnceWithoutKeysPublishesSample(t *testing.T) {
	a, cfg := newTestApp(t)

	report, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.UsedSample)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Published)

	rss, err := os.ReadFile(filepath.Join(cfg.Site.StaticDir, "rss.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(rss), "Sample: Fed cuts rate by 25 bps")
	assert.Contains(t, string(rss), "https://finmuse.example/articles/")

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/news", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Items []struct {
			ID         string  `json:"id"`
			Confidence float64 `json:"confidence"`
			Status     string  `json:"status"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "published", res.Items[0].Status)
	assert.Equal(t, 0.5, res.Items[0].Confidence)

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/articles/"+res.Items[0].ID+".html", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "FinMuse")
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	a, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"llm_calls_today":0`)

	_, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "finmuse_pipeline_cycles_total"))
}

func TestRouterAllowsCrossOrigin(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminScrapeRequiresSecret(t *testing.T) {
	a, _ := newTestApp(t)

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/scrape", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/scrape", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestReindexWritesEmptyIndices(t *testing.T) {
	a, cfg := newTestApp(t)

	require.NoError(t, a.Reindex(context.Background()))
	sitemap, err := os.ReadFile(filepath.Join(cfg.Site.StaticDir, "sitemap.xml"))
	require.NoError(t, err)
	assert.Equal(t, 0, strings.Count(string(sitemap), "<url>"))
}

func TestResolveCompleterUsesSelectedProviderKey(t *testing.T) {
	log := quietLogger()

	assert.Nil(t, resolveCompleter(config.LLMConfig{Provider: "openai"}, log))
	assert.Nil(t, resolveCompleter(config.LLMConfig{Provider: "openai", AnthropicKey: "a"}, log))

	c := resolveCompleter(config.LLMConfig{Provider: "anthropic", AnthropicKey: "a"}, log)
	require.NotNil(t, c)
	assert.Equal(t, "anthropic", c.Name())

	c = resolveCompleter(config.LLMConfig{Provider: "openai", OpenAIKey: "o", AnthropicKey: "a"}, log)
	require.NotNil(t, c)
	assert.Equal(t, "openai", c.Name())
}
