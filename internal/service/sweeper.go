package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper periodically applies the time-driven transitions until ctx is
// cancelled.
func (l *Ledger) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	l.log.Info("sweeper started", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			res, err := l.CompleteElapsed(ctx)
			if err != nil {
				l.log.Error("sweep failed", zap.Error(err))
				continue
			}
			if res.Completed > 0 || res.Expired > 0 {
				l.log.Info("sweep done", zap.Int("completed", res.Completed), zap.Int("expired", res.Expired))
			}
		}
	}
}
