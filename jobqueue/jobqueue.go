// Package jobqueue implements the bounded job queue and worker pool that
// drives ingest and scan jobs (spec §4.7 intro, §5, SPEC_FULL component 11).
// It is grounded directly on downloader.Downloader's jobs/results channel
// pair and worker/generateJobs goroutines, generalized from download-chunk
// jobs to arbitrary ingest/scan jobs and upgraded to use
// golang.org/x/sync/errgroup for worker lifetime management and first-error
// propagation instead of the teacher's hand-rolled sync.WaitGroup plus
// manual error channel.
package jobqueue

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("hashdb/jobqueue")

// Job is a unit of work submitted to the queue. Handlers may submit further
// jobs recursively (spec §4.7 "Recursion"); the Queue tracks outstanding
// work so Close returns only once no jobs remain in flight anywhere.
type Job func(ctx context.Context, q *Queue) error

// Queue is a bounded channel-based queue consumed by N worker goroutines.
// Suspension semantics map directly onto Go channel backpressure: Submit
// blocks when the channel is full, workers block when it is empty — no
// busy-wait polling loop, per spec §9's re-architecture note for the
// original's sched_yield-based job_queue.
type Queue struct {
	jobs chan Job
	grp  *errgroup.Group
	ctx  context.Context

	pending chan struct{} // one token per in-flight job, for Close's drain
}

// New starts a Queue with workers worker goroutines draining a channel of
// capacity 2*workers (spec §5: "push yields cooperatively when the queue is
// full (size > 2×N_workers)").
func New(ctx context.Context, workers int) *Queue {
	grp, gctx := errgroup.WithContext(ctx)
	q := &Queue{
		jobs:    make(chan Job, workers*2),
		grp:     grp,
		ctx:     gctx,
		pending: make(chan struct{}, 1<<20),
	}
	for i := 0; i < workers; i++ {
		grp.Go(q.worker)
	}
	return q
}

func (q *Queue) worker() error {
	for {
		select {
		case <-q.ctx.Done():
			return q.ctx.Err()
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			err := job(q.ctx, q)
			<-q.pending
			if err != nil {
				log.Warnf("job failed: %v", err)
				return err
			}
		}
	}
}

// Submit enqueues a job, blocking if the queue is full. Safe to call from
// within a running job (recursion, spec §4.7).
func (q *Queue) Submit(job Job) {
	q.pending <- struct{}{}
	select {
	case q.jobs <- job:
	case <-q.ctx.Done():
		<-q.pending
	}
}

// Close signals no further top-level jobs will be submitted. It waits,
// checking every millisecond, until no submitted job is queued or running
// (jobs submitted by running jobs included), then closes the channel and
// waits for the workers to exit, returning the first error reported by any
// job, if any.
func (q *Queue) Close() error {
	for len(q.pending) > 0 {
		select {
		case <-q.ctx.Done():
			return q.grp.Wait()
		case <-time.After(time.Millisecond):
		}
	}
	close(q.jobs)
	return q.grp.Wait()
}
