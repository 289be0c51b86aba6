package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/maxbridge/metric"
)

// Consecutive-error handling: past the threshold, a worker sleeps
// errorBackoffUnit * consecutive-error-count before continuing, so a hot
// error loop cannot starve the rest of the system.
const (
	consecutiveErrorThreshold = 5
	errorBackoffUnit          = 50 * time.Millisecond
)

// ProcessFunc handles one dequeued message.
type ProcessFunc func(Message) error

// ErrorFunc receives structured worker errors: the failing message, the
// error, and the worker's consecutive error count.
type ErrorFunc func(msg Message, err error, consecutive int)

// WorkerPool drains the message queue with a fixed set of goroutines.
// Each worker isolates handler failures and applies linear backoff after
// repeated consecutive errors.
type WorkerPool struct {
	queue   *MessageQueue
	process ProcessFunc
	onError ErrorFunc
	workers int

	lifecycleMu sync.Mutex
	running     atomic.Bool
	wg          sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64

	metrics *metric.Metrics
}

// NewWorkerPool creates a pool of the given size over the queue.
// onError may be nil.
func NewWorkerPool(workers int, queue *MessageQueue, process ProcessFunc, onError ErrorFunc, metrics *metric.Metrics) *WorkerPool {
	return &WorkerPool{
		queue:   queue,
		process: process,
		onError: onError,
		workers: workers,
		metrics: metrics,
	}
}

// Start launches the worker goroutines. Starting a running pool is a no-op.
func (p *WorkerPool) Start() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running.Load() {
		return
	}
	p.running.Store(true)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

// Stop signals all workers, wakes any blocked on the queue, and joins
// every goroutine before returning.
func (p *WorkerPool) Stop() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running.Load() {
		return
	}
	p.running.Store(false)

	// Workers may be blocked in Dequeue; the queue's stop broadcast frees them.
	p.queue.Stop()
	p.wg.Wait()
}

// Workers returns the configured worker count.
func (p *WorkerPool) Workers() int { return p.workers }

// Processed returns the total successfully handled messages.
func (p *WorkerPool) Processed() int64 { return p.processed.Load() }

// Failed returns the total handler failures.
func (p *WorkerPool) Failed() int64 { return p.failed.Load() }

func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()

	consecutiveErrors := 0

	for p.running.Load() {
		timeout := IdleDequeueTimeout
		if p.queue.Size() > 0 {
			timeout = BusyDequeueTimeout
		}

		msg, ok := p.queue.Dequeue(timeout)
		if !ok {
			continue
		}

		start := time.Now()
		err := p.process(msg)
		if p.metrics != nil {
			p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
		}

		if err != nil {
			consecutiveErrors++
			p.failed.Add(1)
			if p.metrics != nil {
				p.metrics.WorkerErrors.Inc()
			}
			if p.onError != nil {
				p.onError(msg, err, consecutiveErrors)
			}
			if consecutiveErrors > consecutiveErrorThreshold {
				if p.metrics != nil {
					p.metrics.WorkerBackoffs.Inc()
				}
				time.Sleep(errorBackoffUnit * time.Duration(consecutiveErrors))
			}
			continue
		}

		consecutiveErrors = 0
		p.processed.Add(1)
		if p.metrics != nil {
			p.metrics.MessagesProcessed.WithLabelValues(msg.Destination.String()).Inc()
		}
	}
}
