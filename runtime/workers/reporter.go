package workers

import (
	"context"
	"log/slog"
	"time"

	"syncx/contract"
	"syncx/observability"
)

type onlineSource interface {
	Snapshot() []string
}

type connectionSource interface {
	Connections() []contract.Connection
}

// ReporterWorker logs a summary of the runtime counters at a fixed interval,
// plus a final one on shutdown.
type ReporterWorker struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	online      onlineSource
	connections connectionSource
	interval    time.Duration
}

func NewReporterWorker(
	log *slog.Logger,
	metrics *observability.Metrics,
	online onlineSource,
	connections connectionSource,
	interval time.Duration,
) *ReporterWorker {
	return &ReporterWorker{
		log:         log,
		metrics:     metrics,
		online:      online,
		connections: connections,
		interval:    interval,
	}
}

// Run reports until the context is canceled.
func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			w.log.Info("Reporter stopped")
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time) {
	stats := w.Stats()
	w.log.Info("Runtime stats",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"online", stats.OnlineUsers,
		"connections", stats.LiveConnections,
		"delivered", stats.EventsDelivered,
		"dropped", stats.EventsDropped,
		"persisted", stats.MessagesPersisted,
		"durability_gaps", stats.PersistenceFailure,
		"worker_restarts", stats.WorkerRestarts,
		"alloc_mb", stats.Process.AllocMemMb,
	)
}

// Stats is the snapshot the next report would log.
func (w *ReporterWorker) Stats() observability.RuntimeStats {
	return w.metrics.Snapshot(len(w.online.Snapshot()), len(w.connections.Connections()))
}
