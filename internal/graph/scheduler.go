package graph

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sorapipe/compositor/internal/compositorerr"
	"github.com/sorapipe/compositor/internal/stream"
)

// Scheduler drives a fixed pool of worker goroutines over a set of
// registered processors until every one of them reports Finished, or any
// one of them reports Fatal. It is a ground-up implementation of the
// contract the processor side of the original project demonstrably
// requires of a scheduler: the reference scheduler.rs itself is an empty
// stub.
type Scheduler struct {
	tasks []*task

	ready chan *task
	stop  chan struct{}
	once  sync.Once

	fatal    atomic.Bool
	firstErr error
	errOnce  sync.Once

	wg sync.WaitGroup
}

func newScheduler(tasks []*task) *Scheduler {
	return &Scheduler{
		tasks: tasks,
		ready: make(chan *task, len(tasks)*4+1),
		stop:  make(chan struct{}),
	}
}

// Run executes the graph to completion, returning the first fatal error
// reported by any processor, if any.
func (s *Scheduler) Run() error {
	var active atomic.Int64
	active.Store(int64(len(s.tasks)))

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > len(s.tasks) {
		workers = len(s.tasks)
	}
	if workers < 1 {
		workers = 1
	}

	for _, t := range s.tasks {
		s.enqueue(t)
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(&active)
	}

	s.wg.Wait()
	return s.firstErr
}

func (s *Scheduler) worker(active *atomic.Int64) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case t, ok := <-s.ready:
			if !ok {
				return
			}
			s.step(t, active)
		}
	}
}

func (s *Scheduler) step(t *task, active *atomic.Int64) {
	if s.fatal.Load() {
		return
	}

	outcome := t.processor.ProcessOutput()
	switch outcome.Kind {
	case stream.Processed:
		s.enqueue(t)
	case stream.Pending:
		s.wg.Add(1)
		go s.park(t, outcome, active)
	case stream.Finished:
		t.finished = true
		if active.Add(-1) == 0 {
			s.halt()
		}
	case stream.Fatal:
		s.fail(outcome.Err)
	}
}

// park blocks until the edge(s) a Pending task is waiting on become
// ready, then re-enqueues it for another ProcessOutput call.
func (s *Scheduler) park(t *task, outcome stream.Outcome, active *atomic.Int64) {
	defer s.wg.Done()

	if outcome.Awaiting != nil {
		if e, ok := t.inputEdges[*outcome.Awaiting]; ok {
			e.BlockUntilReady(s.stop)
		}
	} else {
		s.waitAny(t)
	}

	select {
	case <-s.stop:
		return
	default:
		s.enqueue(t)
	}
}

// waitAny blocks until any one of t's input edges becomes ready.
func (s *Scheduler) waitAny(t *task) {
	if len(t.inputEdges) == 0 {
		return
	}
	localStop := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once

	var wg sync.WaitGroup
	for _, e := range t.inputEdges {
		wg.Add(1)
		go func(e *stream.Edge) {
			defer wg.Done()
			if e.BlockUntilReady(merge(s.stop, localStop)) {
				once.Do(func() { close(done) })
			}
		}(e)
	}

	select {
	case <-done:
	case <-s.stop:
	}
	close(localStop)
	wg.Wait()
}

// merge fans two stop signals into one that fires when either does.
func merge(a, b <-chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		select {
		case <-a:
		case <-b:
		}
		close(out)
	}()
	return out
}

func (s *Scheduler) enqueue(t *task) {
	select {
	case s.ready <- t:
	case <-s.stop:
	}
}

func (s *Scheduler) fail(err error) {
	s.errOnce.Do(func() {
		s.firstErr = compositorerr.Wrap(compositorerr.ContractViolation, "scheduler", err)
		s.fatal.Store(true)
		s.halt()
	})
}

func (s *Scheduler) halt() {
	s.once.Do(func() { close(s.stop) })
}
