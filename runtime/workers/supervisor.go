package workers

import (
	"cad-lab/contract"
	"cad-lab/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultRestartDelay = 200 * time.Millisecond
	maxRestartDelay     = 30 * time.Second
)

// Supervisor keeps the long running parts of the server alive (HTTP and gRPC
// listeners, health sampling, documentation indexing).
// A worker returning nil is done for good. An error or a panic restarts it,
// waiting twice as long after each consecutive failure.
type Supervisor struct {
	cancel       context.CancelFunc
	mu           sync.Mutex
	wg           sync.WaitGroup
	log          *slog.Logger
	workers      []contract.Worker
	restartDelay time.Duration
}

func NewSupervisor(log *slog.Logger, restartDelay time.Duration) *Supervisor {
	if restartDelay <= 0 {
		restartDelay = DefaultRestartDelay
	}
	return &Supervisor{log: log, restartDelay: restartDelay}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until every worker has returned.
func (s *Supervisor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, worker := range s.workers {
		s.wg.Add(1)
		go s.supervise(ctx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	defer s.wg.Done()
	name := contract.GetWorkerName(worker)
	log := s.log.With("worker", name)
	delay := s.restartDelay

	for attempt := 1; ; attempt++ {
		started := time.Now()
		err := runGuarded(ctx, worker)
		switch {
		case err == nil:
			log.Info("Worker finished", "runs", attempt)
			return
		case ctx.Err() != nil:
			log.Info("Worker stopped")
			return
		}

		// A worker that stayed up a while starts over with the short delay
		if time.Since(started) > maxRestartDelay {
			delay = s.restartDelay
		}
		log.Warn("Worker crashed, restarting", "error", err, "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(2*delay, maxRestartDelay)
	}
}

func runGuarded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels the workers, Run returns once they are all gone.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
