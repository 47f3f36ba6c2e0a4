package terminal

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// chunkQueue is the unbounded FIFO between a session's reader and batcher.
// It has exactly one producer and one consumer.
type chunkQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	closed bool
	gone   bool

	// notify holds at most one pending wake-up for the consumer.
	notify chan struct{}
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// push appends a chunk. It returns false once the consumer has gone away.
func (q *chunkQueue) push(chunk []byte) bool {
	q.mu.Lock()
	if q.gone {
		q.mu.Unlock()
		return false
	}
	q.items.Add(chunk)
	q.mu.Unlock()

	q.wake()
	return true
}

// close marks the end of input. Queued chunks remain poppable.
func (q *chunkQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// disconnect is called by the consumer when it stops reading.
func (q *chunkQueue) disconnect() {
	q.mu.Lock()
	q.gone = true
	q.items = queue.New()
	q.mu.Unlock()
}

// pop blocks for the next chunk. ok is false once the queue is closed and drained.
func (q *chunkQueue) pop() (chunk []byte, ok bool) {
	for {
		chunk, ok, done := q.tryPop()
		if ok || done {
			return chunk, ok
		}
		<-q.notify
	}
}

// popUntil is pop with a deadline. ok is false on timeout or when closed and drained.
func (q *chunkQueue) popUntil(deadline time.Time) (chunk []byte, ok bool) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		chunk, ok, done := q.tryPop()
		if ok || done {
			return chunk, ok
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		if timer == nil {
			timer = time.NewTimer(remaining)
		} else {
			timer.Reset(remaining)
		}

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		}
	}
}

func (q *chunkQueue) tryPop() (chunk []byte, ok, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() > 0 {
		return q.items.Remove().([]byte), true, false
	}
	return nil, false, q.closed
}

func (q *chunkQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *chunkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
