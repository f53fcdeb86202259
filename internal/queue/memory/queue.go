// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/presellkit/presell-engine/internal/presell"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch     chan presell.ProcessRequest
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan presell.ProcessRequest, capacity),
	}
}

// Enqueue pushes a processing request or returns if the context ends. After
// Close it returns presell.ErrQueueClosed. The read lock is held across the
// send so Close never closes the channel under an in-flight sender.
func (q *Queue) Enqueue(ctx context.Context, request presell.ProcessRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return presell.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- request:
		return nil
	}
}

// Dequeue pops the next request, respecting context cancellation. Once the
// queue is closed and drained it returns presell.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (presell.ProcessRequest, error) {
	select {
	case <-ctx.Done():
		return presell.ProcessRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case request, ok := <-q.ch:
		if !ok {
			return presell.ProcessRequest{}, presell.ErrQueueClosed
		}
		return request, nil
	}
}

// Depth returns the number of requests currently waiting.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. Queued requests remain
// dequeuable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
