package plays

import (
	"context"
	"strings"
	"sync"

	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/metrics"
	"github.com/signalfuse/maestro-ng/pkg/probe"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// StatusResult is one container's reported state. Err carries a ship
// being unreachable ("host down" per spec.md §4.F Status) rather than
// aborting the rest of the fail-soft plan.
type StatusResult struct {
	Container *types.Container
	Status    dockerclient.Status
	Ready     bool
	Err       error
}

// shipListing bulk-polls a ship's containers exactly once, however many
// of that ship's containers ask for it: sync.Once lets every task for the
// same ship share one round trip instead of inspecting containers one by
// one (spec.md §4.F Status "fast": "Status information is bulk-polled
// from each ship's Docker daemon").
type shipListing struct {
	once   sync.Once
	byName map[string]dockerclient.ContainerSummary
	err    error
}

func (l *shipListing) fetch(ctx context.Context, client dockerclient.Client) (map[string]dockerclient.ContainerSummary, error) {
	l.once.Do(func() {
		summaries, err := client.ListContainers(ctx)
		if err != nil {
			l.err = err
			return
		}
		l.byName = make(map[string]dockerclient.ContainerSummary, len(summaries))
		for _, s := range summaries {
			l.byName[s.Name] = s
		}
	})
	return l.byName, l.err
}

// StatusTasks builds the fast Status play: one bulk ListContainers call
// per ship, shared by every container task on that ship, reporting
// `id[:7]` when the listed container's status begins "Up" (spec.md §4.F
// Status "fast"). results must be pre-sized to len(containers); each task
// writes only its own index, so no further synchronization is needed
// (spec.md §5 single-writer rule).
func StatusTasks(containers []*types.Container, clients Clients, results []StatusResult) []executor.Task {
	listings := map[string]*shipListing{}
	for _, c := range containers {
		if listings[c.Ship.Name] == nil {
			listings[c.Ship.Name] = &shipListing{}
		}
	}

	tasks := make([]executor.Task, len(containers))
	for i, c := range containers {
		i, c := i, c
		tasks[i] = executor.Task{
			Name:      c.Name,
			Container: c,
			Run: func(ctx context.Context) error {
				results[i].Container = c
				client, err := clients.For(c.Ship)
				if err != nil {
					results[i].Err = err
					return err
				}
				byName, err := listings[c.Ship.Name].fetch(ctx, client)
				if err != nil {
					results[i].Err = err
					return err
				}
				summary, ok := byName[c.Name]
				if ok && strings.HasPrefix(summary.Status, "Up") {
					id := summary.ID
					if len(id) > 7 {
						id = id[:7]
					}
					results[i].Status = dockerclient.Status{ID: id, Running: true}
				}
				return nil
			},
		}
	}
	return tasks
}

// FullStatusTasks builds the slower FullStatus play: Inspect plus, for a
// running container, evaluating every "running" lifecycle probe once
// (no retries — a single snapshot of current readiness, per spec.md
// §4.F FullStatus).
func FullStatusTasks(containers []*types.Container, clients Clients, probes *probe.Factory, results []StatusResult) []executor.Task {
	tasks := make([]executor.Task, len(containers))
	for i, c := range containers {
		i, c := i, c
		tasks[i] = executor.Task{
			Name:      c.Name,
			Container: c,
			Run: func(ctx context.Context) error {
				results[i].Container = c
				client, err := clients.For(c.Ship)
				if err != nil {
					results[i].Err = err
					return err
				}
				st, err := client.Inspect(ctx, c.Name)
				if err != nil {
					results[i].Err = err
					return err
				}
				results[i].Status = st
				if !st.Running {
					return nil
				}
				ready := true
				for _, spec := range c.Lifecycle["running"] {
					checker, err := probes.New(c, spec, st.ID, client)
					if err != nil {
						ready = false
						break
					}
					outcome := "fail"
					if checker.Test() {
						outcome = "ok"
					} else {
						ready = false
					}
					metrics.ProbeAttemptsTotal.WithLabelValues(spec.Type, outcome).Inc()
				}
				results[i].Ready = ready
				return nil
			},
		}
	}
	return tasks
}
