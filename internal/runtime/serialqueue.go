package runtime

import (
	"sync"
)

// SerialQueue runs enqueued jobs one at a time, in FIFO order, on a single
// dispatcher goroutine. It is the delivery context for subscriber callbacks:
// job N+1 never begins before job N has returned.
type SerialQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool

	done chan struct{} // closed when the dispatcher exits
}

func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.dispatch()
	return q
}

// Enqueue schedules job for execution. After Close it is a no-op.
func (q *SerialQueue) Enqueue(job func()) {
	q.mu.Lock()
	if !q.closed {
		q.jobs = append(q.jobs, job)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

// Close stops the dispatcher. Jobs still queued are dropped; the job being
// executed, if any, runs to completion. Idempotent.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Join blocks until the dispatcher goroutine has exited after Close.
func (q *SerialQueue) Join() {
	<-q.done
}

func (q *SerialQueue) dispatch() {
	for {
		q.mu.Lock()
		for !q.closed && len(q.jobs) == 0 {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			close(q.done)
			return
		}
		job := q.jobs[0]
		copy(q.jobs, q.jobs[1:])
		q.jobs = q.jobs[:len(q.jobs)-1]
		q.mu.Unlock()

		job()
	}
}
