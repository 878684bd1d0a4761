package plays

import (
	"context"
	"time"

	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// RestartOptions configures the Restart play.
type RestartOptions struct {
	Start StartOptions

	// OnlyIfChanged skips both phases for a container whose image has
	// not changed since it was last started, per spec.md §4.F Restart
	// "only_if_changed".
	OnlyIfChanged bool

	// Reuse leaves already-running containers alone instead of
	// stopping and recreating them; Restart then degenerates to Start's
	// own idempotency check for those containers.
	Reuse bool

	// StopStartDelay pauses between a container's stop and its
	// corresponding start, per spec.md §4.F Restart "stop_start_delay".
	StopStartDelay time.Duration
}

// RestartPlan builds the two phases of a Restart: every selected
// container is stopped in reverse (dependent-first) order, then every
// selected container is started in forward (dependency-first) order,
// mirroring original_source/maestro's stop-then-start batch shape
// (grounded on pkg/deploy's batch-with-delay rolling update, generalized
// from a fixed-parallelism batch loop to the executor's DAG scheduler).
// A container whose image has not changed is dropped from both phases
// when OnlyIfChanged is set; Reuse drops it only from the stop phase.
func RestartPlan(ctx context.Context, containers []*types.Container, clients Clients, opts RestartOptions) (stopPhase, startPhase []executor.Task) {
	toStop := make([]*types.Container, 0, len(containers))
	toStart := make([]*types.Container, 0, len(containers))

	for _, c := range containers {
		changed := true
		if opts.OnlyIfChanged {
			changed = imageChanged(ctx, c, clients)
			if !changed {
				continue
			}
		}
		toStart = append(toStart, c)
		if !opts.Reuse {
			toStop = append(toStop, c)
		}
	}

	stopPhase = StopTasks(toStop, clients, false)
	if opts.StopStartDelay > 0 {
		for i := range stopPhase {
			run := stopPhase[i].Run
			stopPhase[i].Run = func(ctx context.Context) error {
				if err := run(ctx); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(opts.StopStartDelay):
				}
				return nil
			}
		}
	}
	startPhase = StartTasks(toStart, clients, opts.Start)
	return stopPhase, startPhase
}

// imageChanged reports whether a container's currently running image
// differs from the image its service now names. An unreachable ship or
// a container that isn't running counts as changed, so Restart always
// proceeds rather than silently skipping a container it cannot compare.
func imageChanged(ctx context.Context, c *types.Container, clients Clients) bool {
	client, err := clients.For(c.Ship)
	if err != nil {
		return true
	}
	st, err := client.Inspect(ctx, c.Name)
	if err != nil || !st.Running {
		return true
	}
	images, err := client.Images(ctx)
	if err != nil {
		return true
	}
	repo, tag := c.Service.ImageDetails()
	for _, img := range images {
		if img.Repository == repo && img.Tag == tag {
			return img.ID != st.ImageID
		}
	}
	return true
}
