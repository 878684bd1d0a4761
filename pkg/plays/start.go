package plays

import (
	"context"
	"fmt"
	"time"

	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/probe"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// StartOptions configures the Start play.
type StartOptions struct {
	Registries    map[string]*types.RegistryAuth
	Probes        *probe.Factory
	RefreshImages bool // always pull, even if the image is already present

	// StatusPollDelay/StatusPollAttempts govern the post-start wait for
	// the container to report Running; defaults (0.5s, 10) apply when
	// either is zero, per spec.md §4.F Start step 6.
	StatusPollDelay    time.Duration
	StatusPollAttempts int

	// ProbeAttempts bounds the running-state readiness probe retries
	// after start, defaulting to 60 per spec.md §4.F Start step 7.
	ProbeAttempts int
}

func (o StartOptions) pollDelay() time.Duration {
	if o.StatusPollDelay > 0 {
		return o.StatusPollDelay
	}
	return 500 * time.Millisecond
}

func (o StartOptions) pollAttempts() int {
	if o.StatusPollAttempts > 0 {
		return o.StatusPollAttempts
	}
	return 10
}

func (o StartOptions) probeAttempts() int {
	if o.ProbeAttempts > 0 {
		return o.ProbeAttempts
	}
	return 60
}

// idempotencyProbeAttempts bounds the readiness check plays.py:224 performs
// before treating a running container as already started
// (`container.ping(retries=2)`) — far fewer than the post-start
// ProbeAttempts, since this is just a quick "is it still healthy" check.
const idempotencyProbeAttempts = 2

// StartTasks builds the Start play in forward (dependency) order: a
// container only starts once every container it requires is already
// running, reproducing the per-container algorithm of
// original_source/maestro/plays.py's Start class:
//  1. if the container is already running AND its running-state probes
//     pass, the start is a no-op (idempotency check)
//  2. otherwise remove any existing container of the same name (stopped,
//     or running but failing its probes)
//  3. pull the image unless it is already present locally and
//     RefreshImages is false
//  4. create the container from its full spec
//  5. start it, publishing ports on the ship's bind host
//  6. poll until the daemon reports it Running
//  7. run every "running" lifecycle probe, retrying up to ProbeAttempts
//     times
func StartTasks(containers []*types.Container, clients Clients, opts StartOptions) []executor.Task {
	return buildTasks(containers, forwardDeps, func(c *types.Container) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return startOne(ctx, c, clients, opts)
		}
	})
}

func startOne(ctx context.Context, c *types.Container, clients Clients, opts StartOptions) error {
	client, err := clients.For(c.Ship)
	if err != nil {
		return err
	}

	st, err := client.Inspect(ctx, c.Name)
	if err != nil {
		return types.NewOrchestrationError("start "+c.Name, err)
	}
	if st.Running && probesPass(c, client, st.ID, opts) {
		return nil
	}
	if st.ID != "" {
		if err := client.Remove(ctx, c.Name); err != nil {
			return types.NewOrchestrationError("remove stale container "+c.Name, err)
		}
	}

	if opts.RefreshImages || !imagePresent(ctx, client, c.Service.Image) {
		repository, tag := c.Service.ImageDetails()
		if err := loginToRegistry(ctx, client, repository, opts.Registries); err != nil {
			return err
		}
		if err := client.Pull(ctx, repository+":"+tag, nil); err != nil {
			return types.NewOrchestrationError("pull "+c.Service.Image, err)
		}
	}

	id, err := client.Create(ctx, createSpec(c))
	if err != nil {
		return types.NewOrchestrationError("create "+c.Name, err)
	}

	if err := client.Start(ctx, id); err != nil {
		return types.NewOrchestrationError("start "+c.Name, err)
	}

	if !waitForRunning(ctx, client, c.Name, opts.pollAttempts(), opts.pollDelay()) {
		return types.NewOrchestrationError(c.Name, fmt.Errorf("did not reach running state"))
	}

	if opts.Probes != nil {
		for _, spec := range c.Lifecycle["running"] {
			checker, err := opts.Probes.New(c, spec, id, client)
			if err != nil {
				return types.NewOrchestrationError(c.Name, err)
			}
			if !probe.TestWithRetries(checker, opts.probeAttempts(), probe.DefaultRetryDelay) {
				return types.NewOrchestrationError(c.Name, fmt.Errorf("%s readiness probe never passed", spec.Type))
			}
		}
	}
	return nil
}

// probesPass reports whether every "running"-state lifecycle probe for c
// passes against the already-running container id, gating the Start play's
// idempotency check (spec.md §4.F Start step 1). A container with no
// "running" probes configured is considered ready as soon as it's running,
// matching plays.py:224's ping defaulting to a plain connectivity check.
func probesPass(c *types.Container, client dockerclient.Client, id string, opts StartOptions) bool {
	if opts.Probes == nil {
		return true
	}
	for _, spec := range c.Lifecycle["running"] {
		checker, err := opts.Probes.New(c, spec, id, client)
		if err != nil {
			return false
		}
		if !probe.TestWithRetries(checker, idempotencyProbeAttempts, probe.DefaultRetryDelay) {
			return false
		}
	}
	return true
}

func imagePresent(ctx context.Context, client dockerclient.Client, image string) bool {
	images, err := client.Images(ctx)
	if err != nil {
		return false
	}
	repo, tag := splitImage(image)
	for _, img := range images {
		if img.Repository == repo && img.Tag == tag {
			return true
		}
	}
	return false
}

func splitImage(image string) (repo, tag string) {
	for i := len(image) - 1; i >= 0; i-- {
		switch image[i] {
		case ':':
			return image[:i], image[i+1:]
		case '/':
			return image, "latest"
		}
	}
	return image, "latest"
}

func waitForRunning(ctx context.Context, client dockerclient.Client, name string, attempts int, delay time.Duration) bool {
	for i := 0; i < attempts; i++ {
		st, err := client.Inspect(ctx, name)
		if err == nil && st.Running {
			return true
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(delay):
			}
		}
	}
	return false
}

// createSpec builds the dockerclient.CreateSpec a container's full
// configuration maps to, including publishing every port on its ship's
// configured bind host (spec.md §4.F Start step 5).
func createSpec(c *types.Container) dockerclient.CreateSpec {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}

	bindHost := c.Ship.BindHost()
	ports := make(map[string]dockerclient.PortBinding, len(c.Ports))
	for _, p := range c.Ports {
		ports[p.Exposed] = dockerclient.PortBinding{HostIP: bindHost, HostPort: p.ExternalPort}
	}

	binds := make([]string, 0, len(c.Volumes))
	for target, v := range c.Volumes {
		bind := v.Source + ":" + target
		if v.RO {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	return dockerclient.CreateSpec{
		Name:         c.Name,
		Image:        c.Service.Image,
		Cmd:          c.Cmd,
		Env:          env,
		Ports:        ports,
		Binds:        binds,
		VolumesFrom:  c.VolumesFrom,
		Workdir:      c.Workdir,
		Privileged:   c.Privileged,
		DNS:          c.DNS,
		CPUShares:    c.CPUShares,
		MemLimit:     c.MemLimit,
		MemSwapLimit: c.MemSwapLimit,
		RestartPolicy: dockerclient.RestartPolicy{
			Name:              c.RestartPolicy.Name,
			MaximumRetryCount: c.RestartPolicy.MaximumRetryCount,
		},
	}
}
