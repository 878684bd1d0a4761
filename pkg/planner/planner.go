// Package planner turns a set of containers into an execution order that
// respects service dependencies, and gathers the transitive set of
// containers a play must also touch. It is grounded on
// maestro.py's Conductor._gather_dependencies/_order_dependencies,
// restructured as the iterative pending/wait loop
// pkg/scheduler/scheduler.go uses for its own per-cycle convergence.
package planner

import (
	"sort"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Direction controls which edge of the service dependency graph ordering
// follows: Forward walks `requires` (dependencies first, for startup),
// Reverse walks `needed_for` (dependents first, for shutdown).
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Gather returns the transitive closure of containers reachable from seed
// by following each container's service dependencies in direction. The
// seed containers are always included. wants_info edges never
// participate: only `requires`/`needed_for` are followed.
func Gather(seed []*types.Container, direction Direction) []*types.Container {
	result := make(map[*types.Container]bool, len(seed))
	for _, c := range seed {
		result[c] = true
	}

	changed := true
	for changed {
		changed = false
		for c := range snapshot(result) {
			deps := c.Service.Requires
			if direction == Reverse {
				deps = c.Service.NeededFor
			}
			for _, svc := range deps {
				for _, dc := range svc.OrderedContainers() {
					if !result[dc] {
						result[dc] = true
						changed = true
					}
				}
			}
		}
	}

	out := make([]*types.Container, 0, len(result))
	for c := range result {
		out = append(out, c)
	}
	types.SortContainers(out)
	return out
}

func snapshot(m map[*types.Container]bool) map[*types.Container]bool {
	cp := make(map[*types.Container]bool, len(m))
	for k := range m {
		cp[k] = true
	}
	return cp
}

// Order arranges pending into an order that respects each container's
// service dependencies in direction. It proceeds in passes: a container
// is emitted once every dependency it has within the working set has
// already been emitted. A pass that emits nothing while containers
// remain pending means the dependency graph has a cycle, reported as a
// DependencyError naming the unresolved containers.
func Order(pending []*types.Container, direction Direction) ([]*types.Container, error) {
	remaining := make([]*types.Container, len(pending))
	copy(remaining, pending)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Less(remaining[j]) })

	var ordered []*types.Container
	orderedSet := make(map[*types.Container]bool)

	for len(remaining) > 0 {
		var wait []*types.Container
		for _, c := range remaining {
			deps := requiredWithinSet(c, direction, remaining)
			ready := true
			for _, d := range deps {
				if !orderedSet[d] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, c)
				orderedSet[c] = true
			} else {
				wait = append(wait, c)
			}
		}

		if len(wait) == len(remaining) {
			names := make([]string, len(wait))
			for i, c := range wait {
				names[i] = c.Name
			}
			return nil, types.NewDependencyError(
				"cannot resolve dependencies for containers %v", names)
		}
		remaining = wait
	}

	return ordered, nil
}

// Dependencies returns the containers in working that c depends on in
// direction — exported so callers outside this package (pkg/plays'
// executor.Task.Predecessors) can derive the same per-container
// dependency edges Order uses internally, instead of approximating them
// from slice position.
func Dependencies(c *types.Container, direction Direction, working []*types.Container) []*types.Container {
	return requiredWithinSet(c, direction, working)
}

// requiredWithinSet returns the containers in the candidate set that c
// depends on in direction, restricted to members of working (a
// dependency outside the set being ordered is already satisfied, as in
// maestro.py's `deps.issubset(set(ordered + [container]))` check against
// only the containers under consideration).
func requiredWithinSet(c *types.Container, direction Direction, working []*types.Container) []*types.Container {
	inSet := make(map[*types.Container]bool, len(working))
	for _, w := range working {
		inSet[w] = true
	}

	svcDeps := c.Service.Requires
	if direction == Reverse {
		svcDeps = c.Service.NeededFor
	}

	var out []*types.Container
	for _, svc := range svcDeps {
		for _, dc := range svc.OrderedContainers() {
			if dc != c && inSet[dc] {
				out = append(out, dc)
			}
		}
	}
	return out
}
