package orchestrator

import (
	"sync"
	"time"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/metric"
)

// Adaptive dequeue timeouts used by the worker loop: poll aggressively
// while messages are flowing, relax when idle.
const (
	BusyDequeueTimeout = 10 * time.Millisecond
	IdleDequeueTimeout = 100 * time.Millisecond
)

// MessageQueue is a bounded FIFO with priority-based admission control.
// Priority affects whether a message is admitted under overflow, not the
// service order: once queued, messages are served in arrival order.
type MessageQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Message
	capacity int
	running  bool
	nextSeq  uint64

	metrics *metric.Metrics
}

// NewMessageQueue creates a queue with the given capacity. The caller is
// responsible for validating the capacity range; config.Validate enforces
// [8, 1024].
func NewMessageQueue(capacity int, metrics *metric.Metrics) *MessageQueue {
	q := &MessageQueue{
		items:    make([]Message, 0, capacity),
		capacity: capacity,
		metrics:  metrics,
	}
	q.cond = sync.NewCond(&q.mu)
	if metrics != nil {
		metrics.QueueCapacity.Set(float64(capacity))
	}
	return q
}

// Start marks the queue as accepting messages.
func (q *MessageQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = true
}

// Stop rejects further traffic and wakes every blocked waiter. Messages
// already queued are discarded.
func (q *MessageQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Enqueue admits a message. On a full queue the message replaces the
// lowest-priority entry if it outranks it (oldest-enqueued entry among
// equal lowest priorities is the one evicted); otherwise the message is
// rejected with ErrQueueFull. A stopped queue rejects everything.
func (q *MessageQueue) Enqueue(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return errors.WrapCapacity(errors.ErrQueueStopped, "MessageQueue", "Enqueue",
			"queue not running")
	}

	msg.seq = q.nextSeq
	q.nextSeq++

	if len(q.items) >= q.capacity {
		// Find the lowest-priority entry; among equals the oldest enqueued.
		lowest := 0
		for i := 1; i < len(q.items); i++ {
			if q.items[i].Priority < q.items[lowest].Priority ||
				(q.items[i].Priority == q.items[lowest].Priority && q.items[i].seq < q.items[lowest].seq) {
				lowest = i
			}
		}

		if q.items[lowest].Priority >= msg.Priority {
			if q.metrics != nil {
				q.metrics.MessagesRejected.Inc()
			}
			return errors.WrapCapacity(errors.ErrQueueFull, "MessageQueue", "Enqueue",
				"queue full and message does not outrank queued entries")
		}

		// Replace in place so the victim's position in the FIFO is inherited.
		evicted := q.items[lowest]
		q.items[lowest] = msg
		if q.metrics != nil {
			q.metrics.MessagesDropped.WithLabelValues(evicted.Destination.String()).Inc()
			q.metrics.MessagesEnqueued.WithLabelValues(msg.Destination.String()).Inc()
		}
		q.cond.Signal()
		return nil
	}

	q.items = append(q.items, msg)
	if q.metrics != nil {
		q.metrics.MessagesEnqueued.WithLabelValues(msg.Destination.String()).Inc()
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	q.cond.Signal()
	return nil
}

// Dequeue removes the oldest message, blocking up to timeout. Returns
// false on timeout and on stop-with-empty-queue.
func (q *MessageQueue) Dequeue(timeout time.Duration) (Message, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.running && len(q.items) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Message{}, false
		}
		q.waitWithTimeout(remaining)
	}

	// Fail fast after stop, even if messages remain queued.
	if !q.running || len(q.items) == 0 {
		return Message{}, false
	}

	msg := q.items[0]
	q.items = q.items[1:]
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	return msg, true
}

// waitWithTimeout waits on the condition variable with an upper bound.
// sync.Cond has no timed wait, so a timer broadcast bounds the sleep.
func (q *MessageQueue) waitWithTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		q.cond.Broadcast()
	})
	defer timer.Stop()
	q.cond.Wait()
}

// Size returns the current queue depth.
func (q *MessageQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured capacity.
func (q *MessageQueue) Capacity() int {
	return q.capacity
}

// IsRunning reports whether the queue accepts traffic.
func (q *MessageQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
