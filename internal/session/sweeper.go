package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweep evicts idle drafts at the given interval until ctx is cancelled.
// Evicted drafts are simply removed; the user's next message starts a fresh
// conversation, so no outbound notice is sent.
func Sweep(ctx context.Context, store Store, interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.EvictIdle(idleTimeout)
			if err != nil {
				slog.Error("Failed to evict idle drafts", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Evicted idle drafts", "count", n)
			}
		}
	}
}
