package plays

import (
	"context"

	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// StopTasks builds the Stop play in reverse (dependent-first) order:
// inspect, then stop with the container's own stop_timeout, treating a
// container that is already down as success rather than an error
// (spec.md §4.F Stop). kill forces SIGKILL semantics and a zero
// stop_start_delay, matching how Kill reuses Stop's body per spec.md
// §4.F Kill ("like Stop but issues kill and always has
// stop_start_delay=0").
func StopTasks(containers []*types.Container, clients Clients, kill bool) []executor.Task {
	reversed := reverseOf(containers)
	return buildTasks(reversed, reverseDeps, func(c *types.Container) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return stopOne(ctx, c, clients, kill)
		}
	})
}

func stopOne(ctx context.Context, c *types.Container, clients Clients, kill bool) error {
	client, err := clients.For(c.Ship)
	if err != nil {
		return err
	}
	st, err := client.Inspect(ctx, c.Name)
	if err != nil {
		return types.NewOrchestrationError("stop "+c.Name, err)
	}
	if !st.Running {
		return nil
	}
	timeout := c.StopTimeout
	if kill {
		timeout = 0
	}
	if err := client.Stop(ctx, c.Name, timeout); err != nil {
		return types.NewOrchestrationError("stop "+c.Name, err)
	}
	return nil
}

// reverseOf returns a new slice with containers in reverse order,
// leaving the input untouched.
func reverseOf(containers []*types.Container) []*types.Container {
	out := make([]*types.Container, len(containers))
	for i, c := range containers {
		out[len(containers)-1-i] = c
	}
	return out
}
