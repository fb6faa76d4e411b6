package utils

import (
	"sync"
)

// WorkerPool runs submitted tasks on a fixed number of workers. The query
// service uses one task per inbound query, so queries run concurrently but
// the number of simultaneous acquisitions stays bounded.
type WorkerPool struct {
	tasks     chan func()
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a pool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	pool := &WorkerPool{
		tasks: make(chan func(), workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit adds a new task to the pool, blocking while the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.tasks <- task
}

// Shutdown stops accepting tasks and waits for running ones to finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.tasks)
	wp.waitGroup.Wait()
}
