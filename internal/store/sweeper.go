package store

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically removes
// expired cache entries. Lazy expiry on read already keeps reads correct;
// the sweeper keeps the table from accumulating dead rows for sessions
// nobody reads again.
func StartSweeper(ctx context.Context, cache Cache, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("cache sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, cache)
			case <-ctx.Done():
				slog.Info("cache sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, cache Cache) {
	deleted, err := cache.ClearExpired(ctx)
	if err != nil {
		slog.Error("cache sweeper failed to clear expired entries", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("cache sweeper cleared expired entries", "count", deleted)
	}
}
