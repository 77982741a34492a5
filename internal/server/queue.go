// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO connecting the session workers. A bounded
// channel would let one slow dispatcher stall the socket reader; the
// session protocol instead requires the reader to always make progress
// and lets memory absorb bursts.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an item. Pushing to a closed queue is a no-op.
func (q *queue[T]) push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// pop removes the head, blocking until an item arrives, the queue is
// closed, or ctx is cancelled.
func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T

	// Wake the cond waiter when the context goes away.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			return item, true
		}
		if q.closed || ctx.Err() != nil {
			return zero, false
		}
		q.cond.Wait()
	}
}

// close wakes all waiters; queued items are still drained by pop.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
