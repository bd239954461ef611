package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/pkg/logger"
)

// Worker is one unit of periodic background work
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one cycle of work
	Run(ctx context.Context) error
}

// PeriodicWorker runs a Worker on a fixed interval. The first cycle executes
// immediately on start, then every interval. A failing or panicking cycle is
// logged and the loop keeps going; only context cancellation stops it.
type PeriodicWorker struct {
	worker    Worker
	interval  time.Duration
	wg        sync.WaitGroup
	startOnce sync.Once
	name      string
}

// NewPeriodicWorker creates a periodic worker
func NewPeriodicWorker(worker Worker, interval time.Duration) *PeriodicWorker {
	return &PeriodicWorker{
		worker:   worker,
		interval: interval,
		name:     worker.Name(),
	}
}

// Start launches the worker loop. Repeated calls are no-ops, so callers do
// not need to track whether the worker is already running.
func (pw *PeriodicWorker) Start(ctx context.Context) {
	pw.startOnce.Do(func() {
		pw.wg.Add(1)
		go pw.run(ctx)
	})
}

// Stop waits for the loop to exit after its context was cancelled.
func (pw *PeriodicWorker) Stop(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		pw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("✅ Worker stopped gracefully",
			zap.String("worker", pw.name),
		)
	case <-time.After(timeout):
		logger.Warn("⚠️ Worker stop timeout",
			zap.String("worker", pw.name),
		)
	}
}

func (pw *PeriodicWorker) run(ctx context.Context) {
	defer pw.wg.Done()

	logger.Info("🚀 Worker started",
		zap.String("worker", pw.name),
		zap.Duration("interval", pw.interval),
	)

	// First cycle runs immediately, then on the ticker.
	pw.cycle(ctx)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Worker stopping",
				zap.String("worker", pw.name),
			)
			return

		case <-ticker.C:
			pw.cycle(ctx)
		}
	}
}

// cycle runs one iteration. It is the outermost safety net: errors and panics
// are logged here and never escape to kill the loop.
func (pw *PeriodicWorker) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker cycle panicked",
				zap.String("worker", pw.name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := pw.worker.Run(ctx); err != nil {
		logger.Error("worker cycle failed",
			zap.String("worker", pw.name),
			zap.Error(err),
		)
	}
}

// WorkerGroup manages multiple workers with shared shutdown
type WorkerGroup struct {
	workers []*PeriodicWorker
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewWorkerGroup creates a worker group bound to ctx
func NewWorkerGroup(ctx context.Context) *WorkerGroup {
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerGroup{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a worker to run every interval once the group starts
func (wg *WorkerGroup) Add(worker Worker, interval time.Duration) {
	wg.mu.Lock()
	defer wg.mu.Unlock()

	wg.workers = append(wg.workers, NewPeriodicWorker(worker, interval))
}

// Start starts all registered workers
func (wg *WorkerGroup) Start() {
	wg.mu.Lock()
	defer wg.mu.Unlock()

	for _, w := range wg.workers {
		w.Start(wg.ctx)
	}

	logger.Info("🚀 Worker group started",
		zap.Int("workers", len(wg.workers)),
	)
}

// Stop cancels the group context and waits for every worker
func (wg *WorkerGroup) Stop(timeout time.Duration) {
	logger.Info("🛑 Stopping worker group...",
		zap.Int("workers", len(wg.workers)),
	)

	wg.cancel()

	wg.mu.Lock()
	defer wg.mu.Unlock()

	for _, w := range wg.workers {
		w.Stop(timeout)
	}

	logger.Info("✅ Worker group stopped")
}
