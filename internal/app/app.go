package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FinMuse/internal/config"
	"FinMuse/internal/domain"
	"FinMuse/internal/handler"
	"FinMuse/internal/infrastructure/llm"
	"FinMuse/internal/infrastructure/news"
	"FinMuse/internal/infrastructure/publisher"
	"FinMuse/internal/infrastructure/scheduler"
	"FinMuse/internal/infrastructure/storage"
	"FinMuse/internal/infrastructure/telegram"
	"FinMuse/internal/logging"
	"FinMuse/internal/ports"
	"FinMuse/internal/provider"
	"FinMuse/internal/usecase"
	"FinMuse/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.SQLiteRepository
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	router    *gin.Engine
}

// New opens the store and builds every component.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	if err := os.MkdirAll(filepath.Join(cfg.Site.StaticDir, "articles"), 0o755); err != nil {
		return nil, fmt.Errorf("create static dir: %w", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	completer := resolveCompleter(cfg.LLM, baseLogger)
	summarizer := usecase.NewRateLimitedSummarizer(usecase.SummarizerDeps{
		Quota:     store,
		Completer: completer,
		Limit:     cfg.LLM.DailyCallLimit,
		Logger:    baseLogger.With("component", "summarizer"),
	})

	source := news.NewNewsAPIClient(cfg.News, nil, baseLogger.With("component", "news"))
	pub := publisher.NewStaticPublisher(cfg.Site.StaticDir, cfg.Site.Domain, store, baseLogger.With("component", "publisher"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: store,
		Summarizer: summarizer,
		Publisher:  pub,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		PageSize:   cfg.News.PageSize,
	})

	driver := scheduler.NewDelayedTicker(cfg.Scheduler.InitialDelay, cfg.Scheduler.Interval, baseLogger.With("component", "scheduler"))

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler")),
	}
	a.router = a.buildRouter()
	return a, nil
}

func resolveCompleter(cfg config.LLMConfig, log *slog.Logger) ports.ChatCompleter {
	if cfg.APIKey() == "" {
		log.Info("llm disabled, no api key for provider", "provider", cfg.Provider)
		return nil
	}

	registry := provider.NewRegistry()
	if cfg.OpenAIKey != "" {
		registry.Register(llm.NewOpenAIClient(cfg))
	}
	if cfg.AnthropicKey != "" {
		registry.Register(llm.NewAnthropicClient(cfg))
	}

	completer, err := registry.Resolve(cfg.Provider)
	if err != nil {
		log.Info("llm disabled, summaries use the extractive fallback", "provider", cfg.Provider)
		return nil
	}
	return completer
}

func (a *Application) buildRouter() *gin.Engine {
	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(a.logger.With("component", "http")))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-Admin-Secret"},
		MaxAge:          12 * time.Hour,
	}))

	r.Static("/static", a.cfg.Site.StaticDir)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.New(a.store, a.store, a.pipeline, handler.Options{
		AdminSecret: a.cfg.HTTP.AdminSecret,
		StaticDir:   a.cfg.Site.StaticDir,
		Logger:      a.logger.With("component", "handler"),
	}).Register(r)

	return r
}

// Handler exposes the HTTP router.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Serve runs the HTTP server and the background timer until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop failed", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// RunOnce performs exactly one pipeline cycle.
func (a *Application) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	return a.pipeline.RunCycle(ctx)
}

// Reindex rewrites the sitemap and RSS feed from stored rows.
func (a *Application) Reindex(ctx context.Context) error {
	return a.pipeline.Reindex(ctx)
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}
