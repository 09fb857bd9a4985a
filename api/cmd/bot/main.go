package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"receipt-ocr/api/internal/app"
	"receipt-ocr/api/internal/config"
	"receipt-ocr/api/internal/httpserver"
	"receipt-ocr/api/internal/logging"
	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/telegram"
	"receipt-ocr/api/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_ = level.Error(logging.New("info", "bot")).Log("msg", "config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "bot")
	if !cfg.DotEnvLoaded {
		_ = level.Warn(logger).Log("msg", "no .env file found; using process environment")
	}
	if cfg.TelegramBotToken == "" {
		_ = level.Error(logger).Log("msg", "TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		_ = level.Error(logger).Log("msg", "telegram login", "err", err)
		os.Exit(1)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:        bot,
		EngManager: ocr.NewManager(app.Engines(cfg, logger)),
		Logger:     logger,
		Timeout:    cfg.RequestTimeout(),
		MaxBytes:   cfg.MaxUploadBytes(),

		DefaultPrompt: cfg.DefaultPrompt,
	}
	repo, closeDB, err := app.Journal(ctx, cfg, logger)
	if err != nil {
		_ = level.Error(logger).Log("msg", "journal unavailable", "err", err)
	}
	defer closeDB()
	if repo != nil {
		r.Journal = repo
	}

	router := httpserver.NewRouter(cfg.LogLevel, logger)
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	addr := net.JoinHostPort("0.0.0.0", cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.WebhookURL != "" {
		if err := setupWebhook(bot, router, r, cfg.WebhookURL, logger); err != nil {
			_ = level.Error(logger).Log("msg", "webhook setup", "err", err)
			os.Exit(1)
		}
	} else {
		// webhook и polling взаимоисключающие
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			_ = level.Warn(logger).Log("msg", "deleteWebhook", "err", err)
		}
		g.Go(func() error {
			telegram.RunPolling(gctx, bot, func(upd tgbotapi.Update) { r.HandleUpdate(gctx, upd) }, logger)
			return nil
		})
	}
	if repo != nil {
		g.Go(func() error { return app.Retention(gctx, cfg, repo, logger) })
	}
	g.Go(func() error { return httpserver.Run(gctx, addr, router, logger) })

	if err := g.Wait(); err != nil {
		_ = level.Error(logger).Log("msg", "bot stopped", "err", err)
		os.Exit(1)
	}
	_ = level.Info(logger).Log("msg", "bye")
}

// setupWebhook registers the public URL with Telegram and mounts the update
// route on a path derived from the token.
func setupWebhook(bot *tgbotapi.BotAPI, router *gin.Engine, r *telegram.Router, baseURL string, logger log.Logger) error {
	path := "/webhook/" + util.SHA256Hex([]byte(bot.Token))[:16]
	wh, err := tgbotapi.NewWebhook(baseURL + path)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	router.POST(path, func(c *gin.Context) {
		upd, err := bot.HandleUpdate(c.Request)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
		// ack first; extraction may outlive Telegram's webhook timeout
		go func(u tgbotapi.Update) {
			ctx, cancel := context.WithTimeout(context.Background(), r.Timeout+time.Minute)
			defer cancel()
			r.HandleUpdate(ctx, u)
		}(*upd)
	})
	_ = level.Info(logger).Log("msg", "webhook registered", "base", baseURL)
	return nil
}
