package omr

import (
	"runtime"
	"sync"
)

// WorkerPool runs per-question scoring jobs concurrently. Ordering between
// jobs is never guaranteed; callers index results by question number.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once
	closed   sync.Once
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// A non-positive count defaults to the number of CPUs.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. It is idempotent.
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
		wp.wg.Done()
	}
}

// Submit adds a job to the queue.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.jobQueue <- job
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close shuts down the worker pool.
func (wp *WorkerPool) Close() {
	wp.closed.Do(func() {
		close(wp.jobQueue)
	})
}
