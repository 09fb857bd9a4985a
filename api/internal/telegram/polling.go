package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"receipt-ocr/api/internal/logging"
)

type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// backoffFor honours Telegram's retry_after hint and otherwise picks a
// short delay by error class.
func backoffFor(err error) time.Duration {
	var apiErr *tgbotapi.Error
	var netErr net.Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		return time.Duration(apiErr.RetryAfter) * time.Second
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests:
		return 3 * time.Second
	case errors.As(err, &netErr) && netErr.Timeout():
		return 2 * time.Second
	default:
		return time.Second
	}
}

// RunPolling long-polls getUpdates until ctx is done, backing off on errors.
func RunPolling(ctx context.Context, bot Updater, handle func(tgbotapi.Update), logger log.Logger) {
	logger = logging.OrNop(logger)
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			_ = level.Info(logger).Log("msg", "polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := backoffFor(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			_ = level.Warn(logger).Log("msg", "polling error", "err", err, "retry_in", d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
