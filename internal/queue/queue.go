// Package queue decouples enrichment from the ingestion path with a
// channel-fed worker that coalesces tasks into micro-batches.
package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task correlates a stored post with the minimal payload the enrichment
// step needs. Tasks live only in memory between enqueue and dispatch.
type Task struct {
	PostID     int64
	ExternalID string
	Author     string
	Text       string
	Link       string
}

// Handler processes one closed batch. It is called from the worker
// goroutine, one batch at a time.
type Handler func(ctx context.Context, batch []Task)

// Options tune the batch-closing state machine.
type Options struct {
	FirstWait time.Duration // wait for the first task of a new batch
	FillWait  time.Duration // per-task wait while filling
	MaxBatch  int           // size cap that closes a batch early
	Capacity  int           // channel buffer
}

func (o *Options) withDefaults() {
	if o.FirstWait <= 0 {
		o.FirstWait = time.Second
	}
	if o.FillWait <= 0 {
		o.FillWait = 2 * time.Second
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = 10
	}
	if o.Capacity <= 0 {
		o.Capacity = 1024
	}
}

// Queue is a FIFO of tasks consumed by a single batching worker.
type Queue struct {
	tasks   chan Task
	opts    Options
	handler Handler
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a queue dispatching closed batches to handler.
func New(handler Handler, opts Options) *Queue {
	opts.withDefaults()
	return &Queue{
		tasks:   make(chan Task, opts.Capacity),
		opts:    opts,
		handler: handler,
		stop:    make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start() {
	if q.started {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.worker()
	log.Println("Batch worker started")
}

// Enqueue adds a task. Blocks only if the buffer is full, which at the
// polling rates this serves should not happen in practice.
func (q *Queue) Enqueue(t Task) {
	q.tasks <- t
	log.Printf("Queued post %d for analysis (queue size: %d)", t.PostID, len(q.tasks))
}

// Len returns the number of tasks waiting in the buffer.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Stop signals the worker and blocks until it exits. The stop flag is
// observed between batches: an in-flight batch is allowed to finish.
func (q *Queue) Stop() {
	if !q.started {
		return
	}
	close(q.stop)
	q.wg.Wait()
	log.Println("Batch worker stopped")
}

// worker runs the batch state machine: EMPTY (waiting for a first
// task), FILLING (accumulating up to MaxBatch with a per-task fill
// timeout), then dispatch and back to EMPTY.
func (q *Queue) worker() {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		batch, stopped := q.collectBatch()
		if len(batch) > 0 {
			q.handler(ctx, batch)
		}
		if stopped {
			return
		}
	}
}

// collectBatch blocks until a batch closes (>=1 task), the FirstWait
// window passes empty, or stop is requested while the batch is empty.
func (q *Queue) collectBatch() (batch []Task, stopped bool) {
	first := time.NewTimer(q.opts.FirstWait)
	defer first.Stop()

	select {
	case <-q.stop:
		return nil, true
	case <-first.C:
		return nil, false
	case t := <-q.tasks:
		batch = append(batch, t)
	}

	for len(batch) < q.opts.MaxBatch {
		fill := time.NewTimer(q.opts.FillWait)
		select {
		case t := <-q.tasks:
			fill.Stop()
			batch = append(batch, t)
		case <-fill.C:
			return batch, false
		}
	}
	return batch, false
}
