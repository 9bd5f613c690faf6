package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Sweeper interface {
	SweepAll(ctx context.Context) (int, error)
}

// ExpirySweeper periodically expires lapsed unpaid orders across all
// customers, so orders lapse even when nobody reads them.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

func NewExpirySweeper(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Expiry sweeper started", zap.Duration("interval", w.interval))
	w.process(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *ExpirySweeper) process(ctx context.Context) {
	n, err := w.sweeper.SweepAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Expiry sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		w.logger.Info("Expiry sweep finished", zap.Int("expired", n))
	}
}
