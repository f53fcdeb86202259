package dispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/presellkit/presell-engine/internal/metrics"
)

type countingWorker struct {
	started atomic.Int32
}

func (w *countingWorker) Run(ctx context.Context) {
	w.started.Add(1)
	<-ctx.Done()
}

func TestDispatcherRunsConfiguredWorkers(t *testing.T) {
	metrics.Init()
	worker := &countingWorker{}
	d := New(worker, 3, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return worker.started.Load() == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestDispatcherClampsConcurrency(t *testing.T) {
	metrics.Init()
	worker := &countingWorker{}
	d := New(worker, 0, nil, nil)
	require.Equal(t, 1, d.concurrency)
}
