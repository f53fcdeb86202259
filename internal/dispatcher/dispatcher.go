// Package dispatcher fans processing work out across a fixed worker pool.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/metrics"
)

// Worker runs a blocking processing loop until its context finishes.
type Worker interface {
	Run(ctx context.Context)
}

// DepthReporter exposes the number of queued requests.
type DepthReporter interface {
	Depth() int
}

// Dispatcher runs a fixed number of workers over a shared queue.
type Dispatcher struct {
	worker      Worker
	concurrency int
	queue       DepthReporter
	logger      *zap.Logger
}

// New constructs a Dispatcher. Concurrency below one is clamped to one.
// The queue is optional and only feeds the depth gauge.
func New(worker Worker, concurrency int, queue DepthReporter, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		worker:      worker,
		concurrency: concurrency,
		queue:       queue,
		logger:      logger,
	}
}

// Run starts the workers and blocks until they all exit.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("starting processing workers", zap.Int("concurrency", d.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.logger.Debug("worker started", zap.Int("worker", id))
			d.worker.Run(ctx)
			d.logger.Debug("worker stopped", zap.Int("worker", id))
		}(i)
	}

	if d.queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.reportDepth(ctx)
		}()
	}

	wg.Wait()
	d.logger.Info("processing workers stopped")
}

func (d *Dispatcher) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetQueueDepth(d.queue.Depth())
		}
	}
}
