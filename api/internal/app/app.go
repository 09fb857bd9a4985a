// Package app wires configuration into engines and the journal for the
// binaries under cmd/.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"receipt-ocr/api/internal/config"
	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/ocr/gemini"
	"receipt-ocr/api/internal/ocr/geminisdk"
	"receipt-ocr/api/internal/ocr/openai"
	"receipt-ocr/api/internal/ocr/yandex"
	"receipt-ocr/api/internal/store"
)

// Engines builds every provider the config allows. Gemini is always
// available, over REST and the SDK; GEMINI_TRANSPORT picks which one
// answers to the default name. OpenAI and Yandex need credentials at startup.
func Engines(cfg *config.Config, logger log.Logger) *ocr.Engines {
	geminiKey := config.EnvKey("GEMINI_API_KEY", cfg.GeminiAPIKey)
	engs := &ocr.Engines{
		Gemini: gemini.New(geminiKey, cfg.GeminiModel,
			gemini.WithBaseURL(cfg.GeminiBaseURL),
			gemini.WithHTTPClient(&http.Client{}),
			gemini.WithLogger(log.With(logger, "engine", "gemini")),
		),
		GeminiSDK: geminisdk.New(geminiKey, cfg.GeminiModel, log.With(logger, "engine", "gemini-sdk")),
		Default:   cfg.DefaultEngine,
	}
	if cfg.GeminiTransport == "sdk" && (engs.Default == "" || engs.Default == "gemini") {
		engs.Default = "gemini-sdk"
	}

	openaiKey := config.EnvKey("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	if openaiKey() != "" {
		engs.OpenAI = openai.New(openaiKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, nil, log.With(logger, "engine", "gpt"))
	}

	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		engs.Yandex = yandex.New(config.EnvKey("YC_OAUTH_TOKEN", cfg.YCOAuthToken), cfg.YCFolderID, nil, log.With(logger, "engine", "yandex"))
	}

	if geminiKey() == "" {
		_ = level.Warn(logger).Log("msg", "GEMINI_API_KEY is not set; gemini calls will be rejected until it is")
	}
	_ = level.Info(logger).Log("msg", "engines ready", "available", strings.Join(engs.Names(), ","), "default", engs.Default)
	return engs
}

// Journal opens the extraction journal, or returns nil when no DSN is
// configured. The returned func is always safe to call.
func Journal(ctx context.Context, cfg *config.Config, logger log.Logger) (*store.ExtractionRepo, func(), error) {
	if cfg.DatabaseURL == "" {
		_ = level.Info(logger).Log("msg", "journal disabled: no DATABASE_URL")
		return nil, func() {}, nil
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, func() {}, err
	}
	repo := store.NewExtractionRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, func() {}, err
	}
	_ = level.Info(logger).Log("msg", "journal connected", "db", config.SafeDSNSummary(cfg.DatabaseURL))
	return repo, func() { _ = db.Close() }, nil
}

// Retention runs the journal purge for JOURNAL_RETENTION_DAYS. It returns at
// once when the journal or the retention is off.
func Retention(ctx context.Context, cfg *config.Config, p store.Purger, logger log.Logger) error {
	if p == nil || cfg.JournalRetention() <= 0 {
		return nil
	}
	_ = level.Info(logger).Log("msg", "journal retention on", "days", cfg.JournalRetentionDays)
	return store.RunRetention(ctx, p, cfg.JournalRetention(), time.Hour, log.With(logger, "component", "retention"))
}
