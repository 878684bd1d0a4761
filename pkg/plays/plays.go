// Package plays implements the per-command orchestration procedures —
// Status, FullStatus, Pull, Start, Stop, Kill, Restart, Clean, Logs,
// DepTree — each building a set of executor.Task closures over a set of
// containers. Grounded on original_source/maestro/plays.py's
// per-container task bodies, restructured from its procedural
// top-to-bottom OutputFormatter loop into executor.Task closures that the
// bounded worker pool in pkg/executor dispatches concurrently.
package plays

import (
	"context"
	"fmt"

	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/planner"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Clients resolves the Docker client facade for a container's ship. One
// Client is shared for the lifetime of a run per spec.md §9 "Per-ship
// Docker client sharing".
type Clients interface {
	For(ship *types.Ship) (dockerclient.Client, error)
}

// ClientMap is the straightforward Clients implementation: a fixed set
// of clients built once when the conductor starts a run.
type ClientMap map[string]dockerclient.Client

func (m ClientMap) For(ship *types.Ship) (dockerclient.Client, error) {
	c, ok := m[ship.Name]
	if !ok {
		return nil, types.NewConfigurationError("no Docker client configured for ship %q", ship.Name)
	}
	return c, nil
}

// verbs and their fail-soft/fail-fast classification, per spec.md §4.E:
// "only status, clean, pull are fail-soft; start, restart, stop are
// fail-fast".
const (
	VerbStatus     = "status"
	VerbFullStatus = "full-status"
	VerbPull       = "pull"
	VerbStart      = "start"
	VerbStop       = "stop"
	VerbKill       = "kill"
	VerbRestart    = "restart"
	VerbClean      = "clean"
	VerbLogs       = "logs"
	VerbDepTree    = "deptree"
)

// FailFast reports whether verb aborts the remaining plan after a
// failure (true) or only skips the failed task's dependents, direct and
// transitive (false).
func FailFast(verb string) bool {
	switch verb {
	case VerbStart, VerbStop, VerbKill, VerbRestart:
		return true
	default:
		return false
	}
}

// buildTasks wraps one closure per container into an executor.Task,
// taking each task's predecessor names from deps (forwardDeps or
// reverseDeps for ordered plays). Plays that don't care about ordering,
// like Clean, pass nil deps, and their tasks then have no predecessors.
func buildTasks(containers []*types.Container, deps func(i int, all []*types.Container) []string, run func(c *types.Container) func(ctx context.Context) error) []executor.Task {
	tasks := make([]executor.Task, len(containers))
	for i, c := range containers {
		var preds []string
		if deps != nil {
			preds = deps(i, containers)
		}
		tasks[i] = executor.Task{
			Name:         c.Name,
			Container:    c,
			Predecessors: preds,
			Run:          run(c),
		}
	}
	return tasks
}

// forwardDeps derives a task's predecessors from the service `requires`
// edges among the containers in the plan (restricted to the plan itself,
// per planner.Dependencies), so that independent branches of the
// dependency graph can run concurrently instead of being serialized by
// slice position (spec.md §4.E "tasks acting on containers on the same
// ship may proceed in parallel").
func forwardDeps(i int, all []*types.Container) []string {
	return namesOf(planner.Dependencies(all[i], planner.Forward, all))
}

// reverseDeps is forwardDeps' mirror for reverse-order plays (Stop,
// Kill): a container's task depends on the tasks of containers that
// require it, which must shut down first.
func reverseDeps(i int, all []*types.Container) []string {
	return namesOf(planner.Dependencies(all[i], planner.Reverse, all))
}

func namesOf(containers []*types.Container) []string {
	names := make([]string, len(containers))
	for i, c := range containers {
		names[i] = c.Name
	}
	return names
}

func label(order int, c *types.Container) string {
	return fmt.Sprintf("%3d. %-20s %-15s %-20s", order, c.Name, c.Service.Name, c.Ship.Name)
}
