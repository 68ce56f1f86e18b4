package coordinator

import (
	"errors"
	"sync"
	"time"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

var (
	errQueueEmpty  = errors.New("queue empty")
	errQueueClosed = errors.New("queue closed")
)

// queue is an unbounded multi-producer, multi-consumer FIFO that also counts
// unfinished items, so a caller can wait until everything pushed has been
// popped and marked done.
type queue struct {
	mu      sync.Mutex
	items   []*domain.TrackRequest
	wake    chan struct{}
	pending int
	idle    *sync.Cond
	closed  bool
}

func newQueue() *queue {
	q := &queue{wake: make(chan struct{}, 1)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// push appends items. before, if set, runs under the queue lock ahead of the
// items becoming visible to consumers.
func (q *queue) push(before func(), items ...*domain.TrackRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}
	if before != nil {
		before()
	}
	q.items = append(q.items, items...)
	q.pending += len(items)
	q.signal()
	return nil
}

// signal wakes one waiting consumer. Must hold mu.
func (q *queue) signal() {
	if q.closed {
		// a closed wake channel already releases everyone
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop waits up to timeout for an item. It returns errQueueEmpty when the
// timeout passes and errQueueClosed once the queue is closed and drained.
func (q *queue) pop(timeout time.Duration) (*domain.TrackRequest, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, errQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-timer.C:
			return nil, errQueueEmpty
		}
	}
}

// done marks one popped item as finished.
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if q.pending <= 0 {
		q.pending = 0
		q.idle.Broadcast()
	}
}

// join blocks until every pushed item has been marked done.
func (q *queue) join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending > 0 {
		q.idle.Wait()
	}
}

// close rejects further pushes and wakes every consumer. Items still queued
// can be popped.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}

func (q *queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// takeAll removes and returns every queued item.
func (q *queue) takeAll() []*domain.TrackRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
