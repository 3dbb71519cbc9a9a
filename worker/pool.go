package worker

import (
	"context"
	"runtime"
	"sync"
)

// Job is one unit of background work. It receives the context it was
// submitted with and must honor its deadline.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a 1-slot input queue: strict
// back-pressure so a busy tool refuses overlapping runs instead of queueing
// them up.
type Pool struct {
	jobs chan submission
	wg   sync.WaitGroup
}

type submission struct {
	ctx context.Context
	job Job
}

// New creates a pool. Size defaults to NumCPU when size<=0.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan submission, 1)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for s := range p.jobs {
				s.job(s.ctx)
			}
		}()
	}
	return p
}

// Submit enqueues a job if the single-slot queue is free. Returns false if
// the job was dropped.
func (p *Pool) Submit(ctx context.Context, job Job) bool {
	select {
	case p.jobs <- submission{ctx: ctx, job: job}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
