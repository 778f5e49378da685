// Package scheduler implements the Job Scheduler (spec.md §4.5): a
// bounded pool of worker goroutines draining a FIFO queue of trash
// operations, with dedup against already-scheduled jobs and best-effort
// cancellation of jobs still waiting. Its shape follows the teacher's
// internal/model file-puller queue (one dedup set, one FIFO, one
// cancellation set, guarded independently) generalized from "pull one
// block" to "run one Job".
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/trashd/trashd/internal/events"
	"github.com/trashd/trashd/internal/logger"
	"github.com/trashd/trashd/internal/metrics"
)

var (
	l     = logger.DefaultLogger
	debug = logger.IsDebugFacility("scheduler")
)

// Job identifies one trash operation by the action it runs and the
// target it runs against (a trash key for cmd/trashd's unlink/shred/
// restore jobs, the source filename for its add jobs). Two Jobs are
// equal iff both fields match,
// which is exactly the dedup key spec.md §4.5 calls for.
type Job struct {
	Action string
	Target string
}

// ActionFunc performs the work named by a Job's Action against its
// Target. It is supplied by the caller (cmd/trashd's applyJob, which
// dispatches to the Router) so the scheduler stays ignorant of what an
// action actually does.
type ActionFunc func(job Job) error

var (
	// ErrJobAlreadyScheduled is returned by Schedule when an
	// identical Job is already waiting or running.
	ErrJobAlreadyScheduled = errors.New("scheduler: job already scheduled")
	// ErrJobsQueueClosed is returned by ExecuteNext once Close has
	// been called and the waiting queue has drained.
	ErrJobsQueueClosed = errors.New("scheduler: queue closed")
)

// Scheduler holds the three guarded collections spec.md §4.5
// describes — an existence set, a FIFO waiting queue, and a
// cancellation set — plus the availability counter that lets
// ExecuteNext block until there is work. Lock order across the three
// mutexes, whenever more than one must be held, is always
// cancelled -> existing -> waiting; every method below acquires them
// in that order.
type Scheduler struct {
	run ActionFunc
	ev  *events.Logger
	m   *metrics.Metrics

	maxThreads int
	avail      *countingSemaphore

	muCancelled sync.Mutex
	cancelled   map[Job]struct{}

	muExisting sync.Mutex
	existing   map[Job]struct{}

	muWaiting sync.Mutex
	waiting   []Job

	closeOnce sync.Once
}

// New builds a Scheduler that runs Jobs with run, bounded to
// maxThreads concurrent ExecuteNext loops (either the caller starts that
// many goroutines calling ExecuteNext, or Serve starts them; New itself
// starts none).
// Events are published on ev, or on events.Default if ev is nil. m may be
// nil if the caller doesn't want scrapeable metrics.
func New(run ActionFunc, maxThreads int, ev *events.Logger, m *metrics.Metrics) *Scheduler {
	if ev == nil {
		ev = events.Default
	}
	return &Scheduler{
		run:        run,
		ev:         ev,
		m:          m,
		maxThreads: maxThreads,
		avail:      newCountingSemaphore(),
		cancelled:  make(map[Job]struct{}),
		existing:   make(map[Job]struct{}),
	}
}

// Schedule enqueues j for execution. If j was already cancelled before
// being scheduled, the cancellation is consumed here and j is treated
// as immediately resolved: onEnterWait fires but j never runs and
// never enters the existence set (scenario S7). If an identical Job is
// already scheduled, ErrJobAlreadyScheduled is returned and the
// existing one is left untouched.
func (s *Scheduler) Schedule(j Job) error {
	s.muCancelled.Lock()
	if _, ok := s.cancelled[j]; ok {
		delete(s.cancelled, j)
		s.muCancelled.Unlock()
		if debug {
			l.Debugf("scheduler: %+v was pre-cancelled, dropping", j)
		}
		s.ev.Log(events.JobEnterWait, j)
		return nil
	}
	s.muCancelled.Unlock()

	s.muExisting.Lock()
	if _, ok := s.existing[j]; ok {
		s.muExisting.Unlock()
		return ErrJobAlreadyScheduled
	}
	s.existing[j] = struct{}{}
	s.muExisting.Unlock()

	s.muWaiting.Lock()
	s.waiting = append(s.waiting, j)
	s.muWaiting.Unlock()

	s.ev.Log(events.JobEnterWait, j)
	s.m.IncJobsScheduled()
	s.avail.Post()
	return nil
}

// ExecuteNext blocks until a job is available, runs it, and reports
// the outcome through the event bus. It returns ErrJobsQueueClosed
// once Close has unblocked every waiting worker and the queue is
// empty; callers run ExecuteNext in a loop until that error comes
// back.
func (s *Scheduler) ExecuteNext() error {
	s.avail.Wait()

	s.muWaiting.Lock()
	if len(s.waiting) == 0 {
		s.muWaiting.Unlock()
		return ErrJobsQueueClosed
	}
	j := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.muWaiting.Unlock()

	s.ev.Log(events.JobDoneWait, j)

	s.muCancelled.Lock()
	_, cancelled := s.cancelled[j]
	if cancelled {
		delete(s.cancelled, j)
	}
	s.muCancelled.Unlock()

	if cancelled {
		s.ev.Log(events.JobCancel, j)
		s.m.IncJobsCancelled()
		s.muExisting.Lock()
		delete(s.existing, j)
		s.muExisting.Unlock()
		return nil
	}

	s.ev.Log(events.JobStartAction, j)
	err := s.run(j)

	s.muExisting.Lock()
	delete(s.existing, j)
	s.muExisting.Unlock()

	if err != nil {
		if debug {
			l.Debugf("scheduler: %+v failed: %v", j, err)
		}
		s.m.IncJobsFailed()
		s.m.IncJobsCancelled()
		s.ev.Log(events.JobCancel, j)
		return nil
	}
	s.m.IncJobsRun()
	s.ev.Log(events.JobEndAction, j)
	return nil
}

// Cancel marks j as cancelled. If j is currently waiting it will be
// skipped by ExecuteNext instead of run; if it is scheduled again
// before ever being picked up, that later Schedule call consumes this
// cancellation instead of enqueuing. Cancel is idempotent; the
// cancellation is recorded even if j is not scheduled yet.
func (s *Scheduler) Cancel(j Job) {
	s.muCancelled.Lock()
	s.cancelled[j] = struct{}{}
	s.muCancelled.Unlock()
}

// Close unblocks every worker currently or later calling ExecuteNext
// once the waiting queue runs dry, by posting the availability counter
// maxThreads times. It is idempotent.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.avail.PostN(s.maxThreads)
	})
}

// Serve implements suture.Service: it starts maxThreads workers calling
// ExecuteNext in a loop, then blocks until ctx is cancelled, at which
// point it closes the scheduler so every worker drains the waiting
// queue and returns. The supervisor tree (cmd/trashd) adds a *Scheduler
// directly alongside the Peer Transport, rather than hand-rolling the
// goroutine-per-worker soup the source's main() builds.
func (s *Scheduler) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(s.maxThreads)
	for i := 0; i < s.maxThreads; i++ {
		go func() {
			defer wg.Done()
			for {
				if err := s.ExecuteNext(); err == ErrJobsQueueClosed {
					return
				}
			}
		}()
	}
	<-ctx.Done()
	s.Close()
	wg.Wait()
	return ctx.Err()
}

// Snapshot returns the Target of every job currently waiting, without
// disturbing the queue; for an add job that is the source filename, not
// a trashname. Peer Transport calls this when a new
// peer is discovered so the peer can be brought up to date with every
// still-scheduled trashname (spec.md §4.4's reconnect replay) instead
// of only trashnames scheduled after the connection was established.
func (s *Scheduler) Snapshot() []string {
	s.muWaiting.Lock()
	defer s.muWaiting.Unlock()
	out := make([]string, 0, len(s.waiting))
	for _, j := range s.waiting {
		out = append(out, j.Target)
	}
	return out
}
