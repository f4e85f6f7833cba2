package service

import (
	"context"
	"sync"
)

// taskQueue is an unbounded FIFO drained by a single worker goroutine.
// push never blocks, so it is safe to call from provider callbacks.
type taskQueue struct {
	mu    sync.Mutex
	items []func(context.Context)
	wake  chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{wake: make(chan struct{}, 1)}
}

func (q *taskQueue) push(fn func(context.Context)) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *taskQueue) pop() (func(context.Context), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return fn, true
}

// run drains tasks in order until ctx is canceled.
func (q *taskQueue) run(ctx context.Context) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			fn, ok := q.pop()
			if !ok {
				break
			}
			fn(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}
