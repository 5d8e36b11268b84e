package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"FinMuse/internal/domain"
)

const (
	defaultNewsLimit = 20
	maxNewsLimit     = 100
	adminHeader      = "X-Admin-Secret"
)

type ArticleStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
}

type HealthStore interface {
	Ping(ctx context.Context) error
	LLMCallsToday(ctx context.Context, today string) (int, error)
}

type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

type Options struct {
	AdminSecret string
	StaticDir   string
	// AdminLimiter throttles the scrape trigger; nil allows one call every 10s.
	AdminLimiter *rate.Limiter
	Logger       *slog.Logger
	Now          func() time.Time
}

type Handler struct {
	store       ArticleStore
	health      HealthStore
	runner      CycleRunner
	adminSecret string
	staticDir   string
	limiter     *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
}

func New(store ArticleStore, health HealthStore, runner CycleRunner, opts Options) *Handler {
	h := &Handler{
		store:       store,
		health:      health,
		runner:      runner,
		adminSecret: opts.AdminSecret,
		staticDir:   opts.StaticDir,
		limiter:     opts.AdminLimiter,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if h.limiter == nil {
		h.limiter = rate.NewLimiter(rate.Every(10*time.Second), 1)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.GetIndex)
	r.GET("/health", h.GetHealth)
	r.POST("/admin/scrape", h.PostScrape)
	r.GET("/api/news", h.GetNews)
	r.GET("/api/article/:id", h.GetArticle)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.health.Ping(ctx); err != nil {
		h.logger.Error("database ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "database unavailable"})
		return
	}

	now := h.now()
	calls, err := h.health.LLMCallsToday(ctx, now.UTC().Format("2006-01-02"))
	if err != nil {
		h.logger.Error("error reading llm quota", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "database unavailable"})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Time:          domain.FormatTime(now),
		LLMCallsToday: calls,
	})
}

func (h *Handler) PostScrape(c *gin.Context) {
	given := c.GetHeader(adminHeader)
	if h.adminSecret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.adminSecret)) != 1 {
		h.logger.Warn("rejected admin scrape", "error", domain.ErrUnauthorized, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, ErrorResponse{Detail: "unauthorized"})
		return
	}

	if !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Detail: "scrape already triggered recently"})
		return
	}

	// A cycle started here runs to completion even if the caller disconnects.
	report, err := h.runner.RunCycle(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.logger.Error("admin scrape failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "scrape failed"})
		return
	}

	c.JSON(http.StatusOK, ScrapeResponse{Status: "ok", Report: report})
}

func (h *Handler) GetNews(c *gin.Context) {
	limit := getQueryLimit(c)

	articles, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("error fetching news", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "database error"})
		return
	}

	items := make([]NewsItemResponse, 0, len(articles))
	for _, a := range articles {
		items = append(items, newsItemFrom(a))
	}

	c.JSON(http.StatusOK, NewsResponse{
		Items: items,
		Meta: NewsMeta{
			Count:       len(items),
			GeneratedAt: domain.FormatTime(h.now()),
		},
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.store.GetArticle(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "not found"})
		return
	}
	if err != nil {
		h.logger.Error("error fetching article", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "database error"})
		return
	}

	c.JSON(http.StatusOK, articleFrom(article))
}

func (h *Handler) GetIndex(c *gin.Context) {
	index := filepath.Join(h.staticDir, "index.html")
	if info, err := os.Stat(index); err == nil && !info.IsDir() {
		c.File(index)
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": "FinMuse running"})
}

func getQueryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNewsLimit)))
	if err != nil {
		return defaultNewsLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxNewsLimit {
		return maxNewsLimit
	}
	return limit
}
