package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"receipt-ocr/api/internal/app"
	"receipt-ocr/api/internal/config"
	"receipt-ocr/api/internal/handle"
	"receipt-ocr/api/internal/httpserver"
	"receipt-ocr/api/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_ = level.Error(logging.New("info", "ocr-web")).Log("msg", "config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "ocr-web")
	if !cfg.DotEnvLoaded {
		_ = level.Warn(logger).Log("msg", "no .env file found; using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engines := app.Engines(cfg, logger)

	opts := handle.Options{
		DefaultPrompt:  cfg.DefaultPrompt,
		Timeout:        cfg.RequestTimeout(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	}
	repo, closeDB, err := app.Journal(ctx, cfg, logger)
	if err != nil {
		// the form works without the journal
		_ = level.Error(logger).Log("msg", "journal unavailable", "err", err)
	}
	defer closeDB()
	if repo != nil {
		opts.Journal = repo
	}

	router := httpserver.NewRouter(cfg.LogLevel, logger)
	handle.New(engines, opts).Register(router)

	addr := net.JoinHostPort("0.0.0.0", cfg.Port)
	g, gctx := errgroup.WithContext(ctx)
	if repo != nil {
		g.Go(func() error { return app.Retention(gctx, cfg, repo, logger) })
	}
	g.Go(func() error { return httpserver.Run(gctx, addr, router, logger) })
	if err := g.Wait(); err != nil {
		_ = level.Error(logger).Log("msg", "http server", "err", err)
		os.Exit(1)
	}
	_ = level.Info(logger).Log("msg", "bye")
}
