package strata

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Executor runs submitted tasks on a fixed set of workers. Submissions from
// inside a task must be safe: they either queue or, when every worker is
// busy, run inline on the submitting goroutine.
type Executor interface {
	Submit(job func())
	Concurrency() int
}

// WorkerPool is the default Executor: a fixed goroutine pool over a shared
// job queue.
type WorkerPool struct {
	jobs    chan func()
	workers int
	busy    atomic.Int32
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWorkerPool starts a pool of n workers; n <= 0 means one worker per CPU
// minus one, at least one.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.NumCPU() - 1
		if n < 1 {
			n = 1
		}
	}
	p := &WorkerPool{
		jobs:    make(chan func(), n*64),
		workers: n,
	}
	logger.Debug("worker pool starting", "workers", n)
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.busy.Add(1)
		job()
		p.busy.Add(-1)
	}
}

// Submit enqueues a job. When every worker is busy, or the queue is full,
// the job runs inline on the submitting goroutine instead; nested
// submissions from inside a task can therefore never deadlock the pool.
func (p *WorkerPool) Submit(job func()) {
	if int(p.busy.Load()) >= p.workers {
		job()
		return
	}
	select {
	case p.jobs <- job:
	default:
		job()
	}
}

// Concurrency returns the worker count.
func (p *WorkerPool) Concurrency() int {
	return p.workers
}

// Close stops accepting jobs and waits for the workers to drain the queue.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// guard runs fn, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("system panicked: %v", r)
		}
	}()
	return fn()
}

// runTasks runs fn(0)..fn(n-1) as n concurrent tasks and joins them. With an
// executor the calling goroutine takes the last task; without one every task
// runs on an errgroup. The first panic or error wins.
func runTasks(n int, exec Executor, fn func(int) error) error {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return guard(func() error { return fn(0) })
	}

	if exec == nil {
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				return guard(func() error { return fn(i) })
			})
		}
		return g.Wait()
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		exec.Submit(func() {
			defer wg.Done()
			record(guard(func() error { return fn(i) }))
		})
	}
	record(guard(func() error { return fn(n - 1) }))
	wg.Wait()
	return firstErr
}

// runIndexRange runs fn(i) for i in [0, n), split into blocks of about
// Config.ChunksPerTask indices across at most Concurrency tasks. With an
// executor the calling goroutine takes the last block. The first panic or
// error wins and is returned after every block has finished. Without an
// executor every block runs on an errgroup.
func runIndexRange(n int, parallel bool, exec Executor, fn func(int) error) error {
	if n == 0 {
		return nil
	}
	if !parallel || n == 1 {
		return guard(func() error {
			for i := 0; i < n; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	perTask := Config.ChunksPerTask
	if perTask < 1 {
		perTask = 1
	}
	concurrency := runtime.NumCPU()
	if exec != nil {
		concurrency = exec.Concurrency()
	}
	targetTasks := (n + perTask - 1) / perTask
	if targetTasks > concurrency {
		targetTasks = concurrency
	}
	if targetTasks < 1 {
		targetTasks = 1
	}
	block := (n + targetTasks - 1) / targetTasks

	runBlock := func(begin, end int) error {
		return guard(func() error {
			for i := begin; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if exec == nil {
		var g errgroup.Group
		for t := 0; t < targetTasks; t++ {
			begin := t * block
			if begin >= n {
				break
			}
			end := min(n, begin+block)
			g.Go(func() error { return runBlock(begin, end) })
		}
		return g.Wait()
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for t := 0; t < targetTasks-1; t++ {
		begin := t * block
		if begin >= n {
			break
		}
		end := min(n, begin+block)
		wg.Add(1)
		exec.Submit(func() {
			defer wg.Done()
			record(runBlock(begin, end))
		})
	}

	// The calling goroutine takes the last block.
	begin := (targetTasks - 1) * block
	if begin < n {
		record(runBlock(begin, min(n, begin+block)))
	}

	wg.Wait()
	return firstErr
}
