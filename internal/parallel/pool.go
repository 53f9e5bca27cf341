package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines for data-parallel mesh jobs.
//
// The pool distributes batches across multiple workers, each with their own
// queue. Workers can steal batches from other workers when their own queue is
// empty. This helps balance load when some batches are slower than others.
//
// Thread safety: WorkerPool is safe for concurrent use. Schedule must not race
// with Close.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	// Each worker primarily pulls from its own queue but can steal from others.
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	// Schedule runs jobs inline once it is false.
	running atomic.Bool

	// next is the round-robin cursor used to spread batches across queues.
	next atomic.Uint64
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}

	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drainQueue(myQueue)
					return
				case work := <-myQueue:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}

		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Schedule splits job into batches and queues them on the workers without
// waiting. The returned Handle completes once every batch has run.
//
// Batches never overlap, so kernels that write only to their own [start, end)
// slots need no further synchronization. A closed pool runs the job inline on
// the calling goroutine; jobs are never dropped.
func (p *WorkerPool) Schedule(job Job) *Handle {
	h := &Handle{}
	if job.N <= 0 || job.Run == nil {
		return h
	}

	batch := job.batchSize()
	batches := (job.N + batch - 1) / batch
	h.wg.Add(batches)

	if !p.running.Load() {
		for b := range batches {
			start, end := job.bounds(b, batch)
			job.Run(start, end)
			h.wg.Done()
		}
		return h
	}

	for b := range batches {
		start, end := job.bounds(b, batch)
		run := func() {
			defer h.wg.Done()
			job.Run(start, end)
		}

		workerID := int(p.next.Add(1) % uint64(p.workers))
		select {
		case p.workQueues[workerID] <- run:
		case <-p.done:
			run()
		}
	}

	return h
}

// For runs job to completion, blocking the caller until all batches finish.
func (p *WorkerPool) For(job Job) {
	p.Schedule(job).Complete()
}

// Close gracefully shuts down the pool.
// It stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}
