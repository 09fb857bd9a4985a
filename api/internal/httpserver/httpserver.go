package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"receipt-ocr/api/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// NewRouter returns a gin engine with panic recovery and access logging.
func NewRouter(logLevel string, logger log.Logger) *gin.Engine {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), AccessLog(logger))
	return r
}

func AccessLog(logger log.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		_ = level.Debug(logger).Log(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"request_id", c.Writer.Header().Get("X-Request-ID"),
		)
	}
}

// Run listens on addr and serves h until ctx is done.
func Run(ctx context.Context, addr string, h http.Handler, logger log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, h, logger)
}

// Serve serves h on ln; when ctx is done the server drains in-flight
// requests for up to shutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, logger log.Logger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_ = level.Info(logger).Log("msg", "listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = level.Info(logger).Log("msg", "shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = level.Error(logger).Log("msg", "http shutdown failed", "err", err)
			return err
		}
		return nil
	})
	return g.Wait()
}
