// Package eventloop coordinates the resident watch mode: a global hotkey
// posts triggers into a single-threaded loop, each trigger runs one solve
// pass on the worker pool, and the busy flag refuses overlapping runs.
package eventloop

import (
	"context"
	"log"
	"time"

	"github.com/Marianoooo45/ocr-qcm-ctk/hotkey"
	"github.com/Marianoooo45/ocr-qcm-ctk/session"
	"github.com/Marianoooo45/ocr-qcm-ctk/worker"
)

// SolveFunc runs one capture→OCR→complete→dispatch pass.
type SolveFunc func(ctx context.Context) (session.Result, error)

// ResultFunc receives the outcome of a pass on the loop goroutine.
type ResultFunc func(res session.Result, err error)

type Loop struct {
	solve    SolveFunc
	onResult ResultFunc
	pool     *worker.Pool
	results  chan outcome
	triggers chan struct{}
	busy     bool
	deadline time.Duration
}

type outcome struct {
	res    session.Result
	err    error
	cancel context.CancelFunc
}

// New creates a loop. deadline bounds one full pass; <=0 means 60s.
func New(solve SolveFunc, onResult ResultFunc, deadline time.Duration) *Loop {
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	return &Loop{
		solve:    solve,
		onResult: onResult,
		pool:     worker.New(1),
		results:  make(chan outcome, 1),
		triggers: make(chan struct{}, 4),
		deadline: deadline,
	}
}

// StartHotkey registers combo; each press posts a trigger. Triggers arriving
// while the channel is full are dropped.
func (l *Loop) StartHotkey(combo string) error {
	return hotkey.Listen(combo, func() {
		select {
		case l.triggers <- struct{}{}:
		default:
		}
	})
}

// Trigger requests a pass programmatically, same path as the hotkey.
func (l *Loop) Trigger() {
	select {
	case l.triggers <- struct{}{}:
	default:
	}
}

// Run processes triggers and results until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case <-l.triggers:
			l.startPass(ctx)
		case o := <-l.results:
			l.busy = false
			o.cancel()
			if l.onResult != nil {
				l.onResult(o.res, o.err)
			}
		}
	}
}

// shutdown waits out any in-flight pass and releases its timer context. The
// busy flag guarantees at most one buffered result, so the drain is a single
// non-blocking receive after the pool stops.
func (l *Loop) shutdown() {
	l.pool.Close()
	select {
	case o := <-l.results:
		o.cancel()
	default:
	}
}

func (l *Loop) startPass(ctx context.Context) {
	if l.busy {
		log.Printf("Eventloop: busy, trigger dropped")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	submitted := l.pool.Submit(jobCtx, func(jc context.Context) {
		res, err := l.solve(jc)
		l.results <- outcome{res: res, err: err, cancel: cancel}
	})
	if !submitted {
		cancel()
		log.Printf("Eventloop: pool full, trigger dropped")
		return
	}
	l.busy = true
}
