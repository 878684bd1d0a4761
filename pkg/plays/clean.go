package plays

import (
	"context"

	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// CleanTasks builds the Clean play: remove each named container if it
// exists and is not running, a no-op otherwise (spec.md §4.F Clean).
// Clean is fail-soft and order-independent, so tasks carry no
// predecessors.
func CleanTasks(containers []*types.Container, clients Clients) []executor.Task {
	return buildTasks(containers, nil, func(c *types.Container) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			client, err := clients.For(c.Ship)
			if err != nil {
				return err
			}
			st, err := client.Inspect(ctx, c.Name)
			if err != nil {
				return err
			}
			if st.ID == "" || st.Running {
				return nil
			}
			return client.Remove(ctx, c.Name)
		}
	})
}
