package store

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Purger deletes journal rows older than the given age.
type Purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

var _ Purger = (*ExtractionRepo)(nil)

// RunRetention purges once right away and then every interval until ctx is
// done. A failed purge is logged and retried on the next tick.
func RunRetention(ctx context.Context, p Purger, olderThan, every time.Duration, logger log.Logger) error {
	if every <= 0 {
		every = time.Hour
	}
	purge := func() {
		n, err := p.PurgeOlderThan(ctx, olderThan)
		switch {
		case err != nil && ctx.Err() == nil:
			_ = level.Warn(logger).Log("msg", "journal purge failed", "err", err)
		case n > 0:
			_ = level.Info(logger).Log("msg", "journal purged", "rows", n, "older_than", olderThan)
		}
	}

	purge()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			purge()
		}
	}
}
