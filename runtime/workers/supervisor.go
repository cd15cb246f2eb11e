package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"syncx/contract"
	"syncx/errors"
	"syncx/observability"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor keeps the background workers of the server alive (message
// persistence, process sampling, reporting). Each worker runs in its own
// goroutine; a panic or an error restarts it after a short delay and is
// counted as a worker restart. A worker returning nil is done for good.
// Canceling the parent context stops everything; Run returns once every
// goroutine is gone, which lets the persister drain its queue first.
type Supervisor struct {
	cancel  context.CancelFunc
	mu      sync.Mutex
	wg      sync.WaitGroup
	log     *slog.Logger
	metrics *observability.Metrics
	workers []contract.Worker
	delay   time.Duration
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log, delay: waitTimeBeforeRestart}
}

// WithMetrics counts restarts in m.
func (s *Supervisor) WithMetrics(m *observability.Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Run blocks until all workers have stopped.
// If the parent cancels, we cancel. If we call Stop, only our children stop.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	workers := s.workers
	s.mu.Unlock()
	defer cancel()

	for _, worker := range workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision. A failure in one worker must not
// stop the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panic", "name", workerName, "panic", r)
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err, "delay", s.delay)
			if s.metrics != nil {
				s.metrics.IncrWorkerRestart()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}
		}
	}()
}

// Stop cancels every supervised worker. Run returns once they are done.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
