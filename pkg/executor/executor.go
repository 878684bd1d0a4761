// Package executor runs a plan of per-container tasks with bounded
// concurrency, respecting the predecessor edges the planner computed. It
// is grounded on pkg/worker's channel-driven dispatch and
// pkg/reconciler's ticker/stop-channel convergence idiom, restructured
// around a DAG-completion tracker instead of a polling loop.
package executor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/signalfuse/maestro-ng/pkg/log"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Phase names reported through ProgressSink.
const (
	PhaseStart    = "start"
	PhaseProgress = "progress"
	PhaseDone     = "done"
	PhaseFailed   = "failed"
	PhaseSkipped  = "skipped"
)

// ProgressSink receives task lifecycle events as the plan runs. index is
// the task's position in the original task list (stable across runs, used
// by pkg/termoutput to look up the task's display label).
type ProgressSink interface {
	Progress(index int, phase, text string)
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) Progress(int, string, string) {}

// Task is one unit of work the executor schedules: acting on a single
// container. Name must be unique within a single Run call; Predecessors
// names must reference other tasks in the same Run.
type Task struct {
	Name         string
	Container    *types.Container
	Predecessors []string
	Run          func(ctx context.Context) error
}

// Options configures one Run.
type Options struct {
	// Parallelism is the number of tasks allowed in flight at once. A
	// value <= 0 is treated as 1.
	Parallelism int

	// FailFast stops scheduling new tasks after the first failure and
	// lets in-flight tasks drain, per spec.md's fail-fast plays
	// (start, restart, stop). When false (fail-soft plays: status,
	// clean, pull), a failed task's dependents are marked skipped but
	// the rest of the plan proceeds.
	FailFast bool

	Sink ProgressSink
}

// Result is the outcome of one task.
type Result struct {
	Name    string
	Err     error
	Skipped bool
}

// Run executes tasks to completion and returns every task's Result, in
// the order tasks were given. A task whose predecessors did not all
// succeed is marked Skipped rather than run, except in fail-soft mode
// where dependents of an unrelated failure still run if their own
// predecessors all succeeded.
func Run(ctx context.Context, tasks []Task, opts Options) []Result {
	logger := log.WithComponent("executor")
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}

	e := &run{
		tasks:    tasks,
		opts:     opts,
		sink:     sink,
		logger:   logger,
		index:    make(map[string]int, len(tasks)),
		results:  make([]Result, len(tasks)),
		remain:   make([]int, len(tasks)),
		deps:     make(map[string][]int, len(tasks)),
		done:     make(chan int, len(tasks)),
		ready:    make(chan int, len(tasks)),
		aborting: false,
	}
	for i, t := range tasks {
		e.index[t.Name] = i
	}
	for i, t := range tasks {
		e.remain[i] = len(t.Predecessors)
		for _, p := range t.Predecessors {
			if _, ok := e.index[p]; !ok {
				continue
			}
			e.deps[p] = append(e.deps[p], i)
		}
	}

	return e.execute(ctx, parallelism)
}

type run struct {
	tasks   []Task
	opts    Options
	sink    ProgressSink
	logger  zerolog.Logger
	index   map[string]int
	results []Result
	remain  []int
	deps    map[string][]int

	mu       sync.Mutex
	aborting bool

	ready chan int
	done  chan int
}

func (e *run) execute(ctx context.Context, parallelism int) []Result {
	pending := len(e.tasks)
	if pending == 0 {
		return e.results
	}

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go e.worker(ctx, &wg)
	}

	// seed every zero-predecessor task
	e.mu.Lock()
	for i, t := range e.tasks {
		if len(t.Predecessors) == 0 {
			e.ready <- i
		}
	}
	e.mu.Unlock()

	remaining := make(map[int]bool, len(e.tasks))
	for i := range e.tasks {
		remaining[i] = true
	}

	for len(remaining) > 0 {
		i := <-e.done
		delete(remaining, i)
		e.advance(i)
	}

	close(e.ready)
	wg.Wait()
	return e.results
}

func (e *run) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for i := range e.ready {
		e.runOne(ctx, i)
	}
}

func (e *run) runOne(ctx context.Context, i int) {
	t := e.tasks[i]

	e.mu.Lock()
	skip := e.shouldSkip(i)
	aborted := e.aborting
	e.mu.Unlock()

	if aborted {
		e.results[i] = Result{Name: t.Name, Skipped: true}
		e.sink.Progress(i, PhaseSkipped, t.Name+": skipped (plan aborted)")
		e.done <- i
		return
	}
	if skip {
		e.results[i] = Result{Name: t.Name, Skipped: true}
		e.sink.Progress(i, PhaseSkipped, t.Name+": skipped (dependency failed)")
		e.done <- i
		return
	}

	e.sink.Progress(i, PhaseStart, t.Name)
	err := t.Run(ctx)
	if err != nil {
		e.logger.Error().Err(err).Str("task", t.Name).Msg("task failed")
		e.results[i] = Result{Name: t.Name, Err: err}
		e.sink.Progress(i, PhaseFailed, t.Name+": "+err.Error())
		if e.opts.FailFast {
			e.mu.Lock()
			e.aborting = true
			e.mu.Unlock()
		}
	} else {
		e.results[i] = Result{Name: t.Name}
		e.sink.Progress(i, PhaseDone, t.Name)
	}
	e.done <- i
}

// shouldSkip reports whether task i's own predecessors already failed or
// were skipped. Must be called with e.mu held.
func (e *run) shouldSkip(i int) bool {
	for _, p := range e.tasks[i].Predecessors {
		pi, ok := e.index[p]
		if !ok {
			continue
		}
		if e.results[pi].Err != nil || e.results[pi].Skipped {
			return true
		}
	}
	return false
}

// advance marks task i complete and pushes any dependent whose
// predecessors are now all resolved. Called from the single collector
// goroutine in execute, so no lock is needed around e.remain.
func (e *run) advance(i int) {
	name := e.tasks[i].Name
	for _, dep := range e.deps[name] {
		e.remain[dep]--
		if e.remain[dep] == 0 {
			e.mu.Lock()
			aborting := e.aborting && e.opts.FailFast
			e.mu.Unlock()
			if aborting {
				e.results[dep] = Result{Name: e.tasks[dep].Name, Skipped: true}
				e.sink.Progress(dep, PhaseSkipped, e.tasks[dep].Name+": skipped (plan aborted)")
				e.done <- dep
				continue
			}
			e.ready <- dep
		}
	}
}
