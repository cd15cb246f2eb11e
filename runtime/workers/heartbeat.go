package workers

import (
	"context"
	"log/slog"
	"time"

	"syncx/observability"
)

// HeartbeatWorker samples the process stats (RSS, CPU, goroutines) shown on
// the admin runtime endpoint.
type HeartbeatWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, metrics: metrics, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *HeartbeatWorker) sample() {
	if err := w.metrics.Sample(); err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
	}
}
