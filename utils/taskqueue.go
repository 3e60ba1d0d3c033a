package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskQueue runs side-channel tasks (document-workspace sync) on a bounded
// pool of workers with retry/backoff. Failures never propagate to the
// caller; they are counted and logged so the success/failure state of the
// side channel stays observable.
type TaskQueue struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
	retry      *RetryConfig
	logger     *Logger

	succeeded int64
	failed    int64
}

// NewTaskQueue creates a TaskQueue with the given worker bound and per-task
// retry budget.
func NewTaskQueue(maxWorkers, maxRetries int, logger *Logger) *TaskQueue {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &TaskQueue{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		retry: &RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Submit enqueues a named task for asynchronous execution.
func (q *TaskQueue) Submit(name string, task func() error) {
	q.wg.Add(1)
	q.semaphore <- struct{}{}

	go func() {
		defer q.wg.Done()
		defer func() { <-q.semaphore }()

		if err := q.retry.Do(name, task); err != nil {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Error("[queue] %s dropped: %v", name, err)
			return
		}
		atomic.AddInt64(&q.succeeded, 1)
	}()
}

// Wait blocks until all submitted tasks have completed.
func (q *TaskQueue) Wait() {
	q.wg.Wait()
}

// Stats returns the number of tasks that ultimately succeeded and failed.
func (q *TaskQueue) Stats() (succeeded, failed int64) {
	return atomic.LoadInt64(&q.succeeded), atomic.LoadInt64(&q.failed)
}
