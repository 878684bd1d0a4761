package conductor

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/signalfuse/maestro-ng/pkg/audit"
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/metrics"
	"github.com/signalfuse/maestro-ng/pkg/planner"
	"github.com/signalfuse/maestro-ng/pkg/plays"
	"github.com/signalfuse/maestro-ng/pkg/probe"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Conductor holds the built Environment plus the collaborators every
// play is run through: one Docker client per ship, an Auditor, and the
// progress sink commands report through. Mirrors
// original_source/maestro/maestro.py's Conductor, restructured so the
// per-command methods below delegate the per-container work to
// pkg/plays and the concurrency/ordering to pkg/planner and
// pkg/executor.
type Conductor struct {
	Env      *types.Environment
	Clients  plays.Clients
	Auditor  audit.Auditor
	Probes   *probe.Factory
	Sink     executor.ProgressSink
	Parallelism int
}

// SelectOptions controls which containers a command applies to, mirroring
// maestro's command-line container/service selection (spec.md §4.C/§4.G).
type SelectOptions struct {
	// Things is the raw list of container/service names the user named.
	// Empty means "every service", unless the play is destructive.
	Things []string

	// WithDependencies pulls in the transitive set of required
	// (forward direction) or dependent (reverse direction; chosen by the
	// caller) services, per spec.md §4.C.
	WithDependencies bool

	ContainerFilter string
	ShipFilter      string
}

// Select expands opts into the ordered set of containers a play should
// run against. destructive plays (start, stop, kill, restart, clean)
// refuse an empty selection: spec.md §4.G "empty selection on a
// destructive command is an error, not 'do nothing' or 'do everything'".
func (cd *Conductor) Select(opts SelectOptions, direction planner.Direction, destructive bool) ([]*types.Container, error) {
	things := opts.Things
	if len(things) == 0 {
		if destructive {
			return nil, types.NewParameterError("refusing to run a destructive command against an empty selection")
		}
		for name := range cd.Env.Services {
			things = append(things, name)
		}
	}

	containers, err := cd.Env.ToContainers(things)
	if err != nil {
		return nil, err
	}

	if opts.WithDependencies {
		containers = planner.Gather(containers, direction)
	}

	containers, err = filterByShip(containers, opts.ShipFilter)
	if err != nil {
		return nil, err
	}
	containers, err = filterByContainer(containers, opts.ContainerFilter)
	if err != nil {
		return nil, err
	}

	return planner.Order(containers, direction)
}

func filterByShip(containers []*types.Container, pattern string) ([]*types.Container, error) {
	if pattern == "" {
		return containers, nil
	}
	var out []*types.Container
	for _, c := range containers {
		ok, err := path.Match(pattern, c.Ship.Name)
		if err != nil {
			return nil, types.NewParameterError("invalid ship filter %q: %v", pattern, err)
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func filterByContainer(containers []*types.Container, pattern string) ([]*types.Container, error) {
	if pattern == "" {
		return containers, nil
	}
	var out []*types.Container
	for _, c := range containers {
		ok, err := path.Match(pattern, c.Name)
		if err != nil {
			return nil, types.NewParameterError("invalid container filter %q: %v", pattern, err)
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (cd *Conductor) runPlan(ctx context.Context, verb string, tasks []executor.Task) ([]executor.Result, error) {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Name
	}

	timer := metrics.NewTimer()
	var results []executor.Result
	err := audit.Run(cd.Auditor, names, verb, func() error {
		results = executor.Run(ctx, tasks, executor.Options{
			Parallelism: cd.parallelism(len(tasks)),
			FailFast:    plays.FailFast(verb),
			Sink:        cd.Sink,
		})
		for _, r := range results {
			outcome := "ok"
			switch {
			case r.Skipped:
				outcome = "skipped"
			case r.Err != nil:
				outcome = "error"
			}
			metrics.TasksTotal.WithLabelValues(verb, outcome).Inc()
		}
		return firstError(results)
	})
	timer.ObserveDurationVec(metrics.PlanDuration, verb)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PlansTotal.WithLabelValues(verb, outcome).Inc()
	return results, err
}

func firstError(results []executor.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.Name, r.Err)
		}
	}
	return nil
}

// parallelism returns the configured concurrency bound, defaulting to
// taskCount (one worker per task, i.e. everything eligible runs at once)
// per spec.md §4.E's default concurrency of `len(containers)`.
func (cd *Conductor) parallelism(taskCount int) int {
	if cd.Parallelism > 0 {
		return cd.Parallelism
	}
	return taskCount
}

// Status runs the fast Status play.
func (cd *Conductor) Status(ctx context.Context, opts SelectOptions) ([]plays.StatusResult, error) {
	containers, err := cd.Select(opts, planner.Forward, false)
	if err != nil {
		return nil, err
	}
	results := make([]plays.StatusResult, len(containers))
	tasks := plays.StatusTasks(containers, cd.Clients, results)
	_, err = cd.runPlan(ctx, plays.VerbStatus, tasks)
	return results, err
}

// FullStatus runs the FullStatus play (inspect plus readiness probes).
func (cd *Conductor) FullStatus(ctx context.Context, opts SelectOptions) ([]plays.StatusResult, error) {
	containers, err := cd.Select(opts, planner.Forward, false)
	if err != nil {
		return nil, err
	}
	results := make([]plays.StatusResult, len(containers))
	tasks := plays.FullStatusTasks(containers, cd.Clients, cd.Probes, results)
	_, err = cd.runPlan(ctx, plays.VerbFullStatus, tasks)
	return results, err
}

// Pull runs the Pull play.
func (cd *Conductor) Pull(ctx context.Context, opts SelectOptions) error {
	containers, err := cd.Select(opts, planner.Forward, false)
	if err != nil {
		return err
	}
	tasks := plays.PullTasks(containers, cd.Clients, cd.Env.Registries, cd.Sink)
	_, err = cd.runPlan(ctx, plays.VerbPull, tasks)
	return err
}

// StartRunOptions carries the Start play's tunables through to the
// Conductor entry point.
type StartRunOptions struct {
	RefreshImages bool
}

// Start runs the Start play in forward dependency order.
func (cd *Conductor) Start(ctx context.Context, opts SelectOptions, run StartRunOptions) error {
	containers, err := cd.Select(opts, planner.Forward, true)
	if err != nil {
		return err
	}
	tasks := plays.StartTasks(containers, cd.Clients, plays.StartOptions{
		Registries:    cd.Env.Registries,
		Probes:        cd.Probes,
		RefreshImages: run.RefreshImages,
	})
	_, err = cd.runPlan(ctx, plays.VerbStart, tasks)
	return err
}

// Stop runs the Stop play in reverse dependency order.
func (cd *Conductor) Stop(ctx context.Context, opts SelectOptions) error {
	containers, err := cd.Select(opts, planner.Reverse, true)
	if err != nil {
		return err
	}
	tasks := plays.StopTasks(containers, cd.Clients, false)
	_, err = cd.runPlan(ctx, plays.VerbStop, tasks)
	return err
}

// Kill runs the Kill play in reverse dependency order.
func (cd *Conductor) Kill(ctx context.Context, opts SelectOptions) error {
	containers, err := cd.Select(opts, planner.Reverse, true)
	if err != nil {
		return err
	}
	tasks := plays.KillTasks(containers, cd.Clients)
	_, err = cd.runPlan(ctx, plays.VerbKill, tasks)
	return err
}

// RestartRunOptions carries the Restart play's tunables.
type RestartRunOptions struct {
	OnlyIfChanged  bool
	Reuse          bool
	StopStartDelay time.Duration
	RefreshImages  bool
}

// Restart runs the Restart play: a reverse-order stop phase followed by
// a forward-order start phase, per spec.md §4.F.
func (cd *Conductor) Restart(ctx context.Context, opts SelectOptions, run RestartRunOptions) error {
	containers, err := cd.Select(opts, planner.Forward, true)
	if err != nil {
		return err
	}
	stopPhase, startPhase := plays.RestartPlan(ctx, containers, cd.Clients, plays.RestartOptions{
		Start: plays.StartOptions{
			Registries:    cd.Env.Registries,
			Probes:        cd.Probes,
			RefreshImages: run.RefreshImages,
		},
		OnlyIfChanged:  run.OnlyIfChanged,
		Reuse:          run.Reuse,
		StopStartDelay: run.StopStartDelay,
	})
	if _, err := cd.runPlan(ctx, plays.VerbStop, stopPhase); err != nil {
		return err
	}
	_, err = cd.runPlan(ctx, plays.VerbStart, startPhase)
	return err
}

// Clean runs the Clean play.
func (cd *Conductor) Clean(ctx context.Context, opts SelectOptions) error {
	containers, err := cd.Select(opts, planner.Forward, true)
	if err != nil {
		return err
	}
	tasks := plays.CleanTasks(containers, cd.Clients)
	_, err = cd.runPlan(ctx, plays.VerbClean, tasks)
	return err
}

// Logs streams a single container's output, per spec.md §4.F Logs. It is
// a ParameterError to name more than one container.
func (cd *Conductor) Logs(ctx context.Context, opts SelectOptions, follow bool, n int, w io.Writer) error {
	containers, err := cd.Select(opts, planner.Forward, false)
	if err != nil {
		return err
	}
	if len(containers) != 1 {
		return types.NewParameterError("logs requires exactly one container, got %d", len(containers))
	}
	return plays.Logs(ctx, containers[0], cd.Clients, follow, n, w)
}

// DepTree prints the dependency tree for the named services.
func (cd *Conductor) DepTree(w io.Writer, names []string, recursive bool) error {
	var roots []*types.Service
	if len(names) == 0 {
		for _, svc := range cd.Env.Services {
			roots = append(roots, svc)
		}
	} else {
		for _, name := range names {
			svc, ok := cd.Env.Services[name]
			if !ok {
				return types.NewConfigurationError("%s is not a known service", name)
			}
			roots = append(roots, svc)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	plays.DepTree(w, roots, recursive)
	return nil
}

// Dump returns the names of the containers a set of options resolves
// to, in plan order, without running any play — used by the CLI's dump
// command to preview what a command would touch (spec.md §4.G).
func (cd *Conductor) Dump(opts SelectOptions, direction planner.Direction) ([]string, error) {
	containers, err := cd.Select(opts, direction, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(containers))
	for i, c := range containers {
		names[i] = c.Name
	}
	return names, nil
}

// Complete returns every container and service name, for shell
// completion (spec.md §4.G).
func (cd *Conductor) Complete() []string {
	names := make([]string, 0, len(cd.Env.Containers)+len(cd.Env.Services))
	for n := range cd.Env.Containers {
		names = append(names, n)
	}
	for n := range cd.Env.Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
