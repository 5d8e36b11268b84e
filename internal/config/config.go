package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "FINMUSE_CONFIG"
	dbPathEnv         = "FINMUSE_DB_PATH"
	staticDirEnv      = "FINMUSE_STATIC_DIR"
	httpAddrEnv       = "FINMUSE_HTTP_ADDR"
	adminSecretEnv    = "FINMUSE_ADMIN_SECRET"
	siteDomainEnv     = "SITE_DOMAIN"
	newsAPIKeyEnv     = "NEWS_API_KEY"
	openAIKeyEnv      = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	dailyLimitEnv     = "DAILY_LLM_CALL_LIMIT"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	News          NewsConfig         `yaml:"news"`
	LLM           LLMConfig          `yaml:"llm"`
	Site          SiteConfig         `yaml:"site"`
	HTTP          HTTPConfig         `yaml:"http"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the pipeline runs.
type SchedulerConfig struct {
	InitialDelay time.Duration `yaml:"initialDelay"`
	Interval     time.Duration `yaml:"interval"`
}

// NewsConfig describes the headlines provider.
type NewsConfig struct {
	APIKey   string        `yaml:"apiKey"`
	BaseURL  string        `yaml:"baseUrl"`
	PageSize int           `yaml:"pageSize"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig defines how to reach the summarization model.
type LLMConfig struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	OpenAIKey        string        `yaml:"openaiKey"`
	OpenAIBaseURL    string        `yaml:"openaiBaseUrl"`
	AnthropicKey     string        `yaml:"anthropicKey"`
	AnthropicBaseURL string        `yaml:"anthropicBaseUrl"`
	DailyCallLimit   int           `yaml:"dailyCallLimit"`
	MaxTokens        int           `yaml:"maxTokens"`
	Timeout          time.Duration `yaml:"timeout"`
}

// APIKey returns the key for the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

// SiteConfig controls where static output goes and how it is linked.
type SiteConfig struct {
	Domain    string `yaml:"domain"`
	StaticDir string `yaml:"staticDir"`
}

// HTTPConfig configures the read API listener.
type HTTPConfig struct {
	Addr        string `yaml:"addr"`
	AdminSecret string `yaml:"adminSecret"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig selects level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	return cfg
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Database.Path, dbPathEnv)
	setString(&c.Site.StaticDir, staticDirEnv)
	setString(&c.Site.Domain, siteDomainEnv)
	setString(&c.HTTP.Addr, httpAddrEnv)
	setString(&c.HTTP.AdminSecret, adminSecretEnv)
	setString(&c.News.APIKey, newsAPIKeyEnv)
	setString(&c.LLM.OpenAIKey, openAIKeyEnv)
	setString(&c.LLM.AnthropicKey, anthropicKeyEnv)
	setString(&c.LLM.Provider, llmProviderEnv)
	setString(&c.LLM.Model, llmModelEnv)
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.Format, logFormatEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)

	if v := os.Getenv(dailyLimitEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("config: invalid %s=%q, keeping %d", dailyLimitEnv, v, c.LLM.DailyCallLimit)
		} else {
			c.LLM.DailyCallLimit = n
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Database.Path, override.Database.Path)

	if override.Scheduler.InitialDelay > 0 {
		base.Scheduler.InitialDelay = override.Scheduler.InitialDelay
	}
	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}

	mergeString(&base.News.APIKey, override.News.APIKey)
	mergeString(&base.News.BaseURL, override.News.BaseURL)
	if override.News.PageSize > 0 {
		base.News.PageSize = override.News.PageSize
	}
	if override.News.Timeout > 0 {
		base.News.Timeout = override.News.Timeout
	}

	mergeString(&base.LLM.Provider, override.LLM.Provider)
	mergeString(&base.LLM.Model, override.LLM.Model)
	mergeString(&base.LLM.OpenAIKey, override.LLM.OpenAIKey)
	mergeString(&base.LLM.OpenAIBaseURL, override.LLM.OpenAIBaseURL)
	mergeString(&base.LLM.AnthropicKey, override.LLM.AnthropicKey)
	mergeString(&base.LLM.AnthropicBaseURL, override.LLM.AnthropicBaseURL)
	if override.LLM.DailyCallLimit > 0 {
		base.LLM.DailyCallLimit = override.LLM.DailyCallLimit
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	mergeString(&base.Site.Domain, override.Site.Domain)
	mergeString(&base.Site.StaticDir, override.Site.StaticDir)
	mergeString(&base.HTTP.Addr, override.HTTP.Addr)
	mergeString(&base.HTTP.AdminSecret, override.HTTP.AdminSecret)
	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Database:  DatabaseConfig{Path: "finmuse.db"},
		Scheduler: SchedulerConfig{InitialDelay: 2 * time.Second, Interval: time.Hour},
		News: NewsConfig{
			BaseURL:  "https://newsapi.org/v2/top-headlines",
			PageSize: 20,
			Timeout:  20 * time.Second,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			DailyCallLimit: 100,
			MaxTokens:      500,
			Timeout:        30 * time.Second,
		},
		Site:    SiteConfig{Domain: "http://localhost:8000", StaticDir: "static"},
		HTTP:    HTTPConfig{Addr: ":8000", AdminSecret: "change_me"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
