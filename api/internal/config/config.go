package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.yaml"

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
	GeminiBaseURL   string `yaml:"gemini_base_url"`
	GeminiTransport string `yaml:"gemini_transport"` // "rest" | "sdk"
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	YCOAuthToken    string `yaml:"yc_oauth_token"`
	YCFolderID      string `yaml:"yc_folder_id"`

	DefaultEngine     string `yaml:"default_engine"`
	DefaultPrompt     string `yaml:"default_prompt"`
	PromptFile        string `yaml:"prompt_file"` // read into DefaultPrompt when that is empty
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	MaxUploadMB       int    `yaml:"max_upload_mb"`

	DatabaseURL          string `yaml:"database_url"`
	JournalRetentionDays int    `yaml:"journal_retention_days"` // 0 keeps rows forever
	TelegramBotToken     string `yaml:"telegram_bot_token"`
	WebhookURL           string `yaml:"webhook_url"` // empty: long polling

	// Set by Load, not by the file.
	ConfigFile   string `yaml:"-"`
	DotEnvLoaded bool   `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		Port:              "8000",
		LogLevel:          "info",
		GeminiModel:       "gemini-2.0-flash",
		GeminiBaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		GeminiTransport:   "rest",
		OpenAIModel:       "gpt-4o-mini",
		DefaultEngine:     "gemini",
		RequestTimeoutSec: 180,
		MaxUploadMB:       10,
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil && v > 0 {
		return v
	}
	return def
}

// Load reads .env (if any), then the YAML file (CONFIG_FILE or ./config.yaml
// when present), then environment variables, each layer overriding the last.
func Load() (*Config, error) {
	cfg := defaults()
	cfg.DotEnvLoaded = godotenv.Load() == nil

	path := getEnv("CONFIG_FILE", "")
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiBaseURL = strings.TrimRight(getEnv("GEMINI_BASE_URL", cfg.GeminiBaseURL), "/")
	cfg.GeminiTransport = strings.ToLower(getEnv("GEMINI_TRANSPORT", cfg.GeminiTransport))
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.YCOAuthToken = getEnv("YC_OAUTH_TOKEN", cfg.YCOAuthToken)
	cfg.YCFolderID = getEnv("YC_FOLDER_ID", cfg.YCFolderID)
	cfg.DefaultEngine = strings.ToLower(getEnv("DEFAULT_ENGINE", cfg.DefaultEngine))
	cfg.DefaultPrompt = getEnv("DEFAULT_PROMPT", cfg.DefaultPrompt)
	cfg.PromptFile = getEnv("PROMPT_FILE", cfg.PromptFile)
	if cfg.DefaultPrompt == "" && cfg.PromptFile != "" {
		p, err := loadPrompt(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		cfg.DefaultPrompt = p
	}
	cfg.RequestTimeoutSec = getEnvInt("REQUEST_TIMEOUT_SEC", cfg.RequestTimeoutSec)
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.WebhookURL = strings.TrimRight(getEnv("WEBHOOK_URL", cfg.WebhookURL), "/")
	cfg.DatabaseURL = resolveDSN(cfg.DatabaseURL)
	if v := strings.TrimSpace(os.Getenv("JOURNAL_RETENTION_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("JOURNAL_RETENTION_DAYS: %w", err)
		}
		cfg.JournalRetentionDays = n
	}
	if cfg.JournalRetentionDays < 0 {
		return nil, fmt.Errorf("JOURNAL_RETENTION_DAYS must be >= 0, got %d", cfg.JournalRetentionDays)
	}

	switch cfg.GeminiTransport {
	case "rest", "sdk":
	default:
		return nil, fmt.Errorf("GEMINI_TRANSPORT must be rest or sdk, got %q", cfg.GeminiTransport)
	}
	return cfg, nil
}

func loadPrompt(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return p, nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// JournalRetention is how long journal rows are kept; zero disables the purge.
func (c *Config) JournalRetention() time.Duration {
	return time.Duration(c.JournalRetentionDays) * 24 * time.Hour
}

// EnvKey returns a credential provider that reads the variable on every call,
// falling back to the value loaded from the config file.
func EnvKey(name, fallback string) func() string {
	return func() string {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
		return fallback
	}
}

// StaticKey returns a provider for a fixed credential.
func StaticKey(key string) func() string {
	return func() string { return key }
}

// resolveDSN prefers DATABASE_URL, then builds one from POSTGRES_*/PG* when a
// host is given. An empty result disables the journal.
func resolveDSN(fromFile string) string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	host := getEnv("PGHOST", "")
	if host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "receipts"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "receipts"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary prints the DSN without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
