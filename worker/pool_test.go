package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsJobs(t *testing.T) {
	p := New(2)

	var ran atomic.Int32
	done := make(chan struct{})
	ok := p.Submit(context.Background(), func(ctx context.Context) {
		ran.Add(1)
		close(done)
	})
	if !ok {
		t.Fatal("Expected the submit to be accepted")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Job did not run")
	}
	p.Close()

	if ran.Load() != 1 {
		t.Errorf("Expected one run, got %d", ran.Load())
	}
}

func TestPoolBackpressure(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	release := make(chan struct{})

	// Occupy the single worker.
	if !p.Submit(context.Background(), func(ctx context.Context) {
		close(block)
		<-release
	}) {
		t.Fatal("Expected the first submit to be accepted")
	}
	<-block

	// One job fits the queue slot; the next must be refused, not queued.
	first := p.Submit(context.Background(), func(ctx context.Context) {})
	second := p.Submit(context.Background(), func(ctx context.Context) {})
	if !first {
		t.Error("Expected the queue slot to take one job")
	}
	if second {
		t.Error("Expected the overflow submit to be dropped")
	}

	close(release)
}

func TestPoolPassesContext(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seen := make(chan error, 1)
	p.Submit(ctx, func(jc context.Context) {
		seen <- jc.Err()
	})

	select {
	case err := <-seen:
		if err == nil {
			t.Error("Expected the job to observe the cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Job did not run")
	}
}
