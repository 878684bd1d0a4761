package dockerclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Namespace is the containerd namespace every maestro-managed container
// lives in, so a host can run other containerd workloads undisturbed.
const Namespace = "maestro"

// ContainerdClient is the Client implementation backing a single ship: one
// long-lived containerd connection dialed at the ship's resolved address.
// An ssh_tunnel forwarding a local Unix socket to the remote daemon, if
// configured, happens before NewContainerdClient is called; this type only
// ever dials a local path.
type ContainerdClient struct {
	client *containerd.Client
	ship   *types.Ship
}

// NewContainerdClient dials the containerd socket for ship. addr is the
// local (possibly tunnel-forwarded) socket path.
func NewContainerdClient(ship *types.Ship, addr string) (*ContainerdClient, error) {
	client, err := containerd.New(addr)
	if err != nil {
		return nil, types.NewTransientError(fmt.Sprintf("dial ship %s", ship.Name), err)
	}
	return &ContainerdClient{client: client, ship: ship}, nil
}

// Close releases the underlying connection.
func (c *ContainerdClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *ContainerdClient) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, Namespace)
}

// Inspect returns the live state of name, or a zero-value Status (ID
// empty) if no such container exists — not-found is not an error here,
// callers that care check ID.
func (c *ContainerdClient) Inspect(ctx context.Context, name string) (Status, error) {
	ctx = c.ctx(ctx)
	ctr, err := c.client.LoadContainer(ctx, name)
	if err != nil {
		return Status{}, nil
	}

	imageID := c.imageIDOf(ctx, ctr)

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return Status{ID: name, ImageID: imageID}, nil
	}
	taskStatus, err := task.Status(ctx)
	if err != nil {
		return Status{}, classify("inspect", err)
	}

	return Status{
		ID:      name,
		ImageID: imageID,
		Running: taskStatus.Status == containerd.Running || taskStatus.Status == containerd.Paused,
		Exited:  taskStatus.Status == containerd.Stopped,
		Raw:     map[string]interface{}{"status": string(taskStatus.Status), "exit_code": taskStatus.ExitStatus},
	}, nil
}

// imageIDOf resolves the digest of the image ctr was created from. ctx is
// already namespaced. A lookup failure leaves ImageID empty rather than
// failing the whole Inspect — only only_if_changed consults it, and it
// already treats an empty/unknown id as "changed".
func (c *ContainerdClient) imageIDOf(ctx context.Context, ctr containerd.Container) string {
	info, err := ctr.Info(ctx)
	if err != nil {
		return ""
	}
	img, err := c.client.GetImage(ctx, info.Image)
	if err != nil {
		return ""
	}
	return img.Target().Digest.String()
}

// ListContainers bulk-polls every container in the maestro namespace on
// this ship in one round trip, deriving each one's human-readable status
// string the same way Inspect's Running/Exited classification does, so
// the fast Status play can consult a single listing instead of inspecting
// containers one at a time.
func (c *ContainerdClient) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	ctx = c.ctx(ctx)
	containers, err := c.client.Containers(ctx)
	if err != nil {
		return nil, classify("list containers", err)
	}
	summaries := make([]ContainerSummary, 0, len(containers))
	for _, ctr := range containers {
		summaries = append(summaries, ContainerSummary{
			Name:   ctr.ID(),
			ID:     ctr.ID(),
			Status: c.statusStringOf(ctx, ctr),
		})
	}
	return summaries, nil
}

// statusStringOf reports a Docker-style status prefix ("Up" or "Exited")
// for ctr, mirroring the classification Inspect applies per-container.
func (c *ContainerdClient) statusStringOf(ctx context.Context, ctr containerd.Container) string {
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return "Created"
	}
	taskStatus, err := task.Status(ctx)
	if err != nil {
		return "Created"
	}
	if taskStatus.Status == containerd.Running || taskStatus.Status == containerd.Paused {
		return "Up"
	}
	return "Exited"
}

// Images returns the images present on this ship.
func (c *ContainerdClient) Images(ctx context.Context) ([]Image, error) {
	ctx = c.ctx(ctx)
	imgs, err := c.client.ListImages(ctx)
	if err != nil {
		return nil, classify("list images", err)
	}
	out := make([]Image, 0, len(imgs))
	for _, img := range imgs {
		repo, tag := splitRef(img.Name())
		out = append(out, Image{Repository: repo, Tag: tag, ID: img.Target().Digest.String()})
	}
	return out, nil
}

func splitRef(ref string) (repo, tag string) {
	idx := strings.LastIndex(ref, ":")
	if idx < 0 || strings.Contains(ref[idx:], "/") {
		return ref, "latest"
	}
	return ref[:idx], ref[idx+1:]
}

// Login is a no-op for the containerd transport: registry credentials are
// supplied per-Pull via resolver options rather than a standing session.
// Kept on the interface because the Docker Remote API transport (a future
// Client implementation) does need a stateful login.
func (c *ContainerdClient) Login(ctx context.Context, auth AuthConfig) error {
	return nil
}

// Pull fetches image, reporting layer-by-layer progress (spec.md §4.F
// Pull) by polling the content store's in-flight ingests while the pull
// runs — the same pattern ctr's own pull command uses, since containerd's
// image service streams no progress events of its own the way the Docker
// daemon API does.
func (c *ContainerdClient) Pull(ctx context.Context, image string, cb PullProgress) error {
	ctx = c.ctx(ctx)
	if cb == nil {
		if _, err := c.client.Pull(ctx, image, containerd.WithPullUnpack); err != nil {
			return classify("pull "+image, err)
		}
		return nil
	}

	cb(PullEvent{Status: "pulling " + image})

	progressCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go c.reportPullProgress(progressCtx, cb, done)

	_, err := c.client.Pull(ctx, image, containerd.WithPullUnpack)
	cancel()
	<-done
	if err != nil {
		return classify("pull "+image, err)
	}
	cb(PullEvent{Status: "downloaded"})
	return nil
}

// reportPullProgress polls the content store's ingest statuses every
// 200ms and emits one PullEvent per layer until ctx is cancelled, so the
// caller's progress map (one entry per layer id) stays current while the
// underlying Pull call is in flight.
func (c *ContainerdClient) reportPullProgress(ctx context.Context, cb PullProgress, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if statuses, err := c.client.ContentStore().ListStatuses(ctx); err == nil {
			for _, st := range statuses {
				ev := PullEvent{LayerID: st.Ref, Current: st.Offset, Total: st.Total}
				if st.Total > 0 && st.Offset >= st.Total {
					ev.Status = "Download complete"
				} else {
					ev.Status = "Downloading"
				}
				cb(ev)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Create builds the OCI spec for spec and instantiates (but does not
// start) the container.
func (c *ContainerdClient) Create(ctx context.Context, spec CreateSpec) (string, error) {
	ctx = c.ctx(ctx)

	image, err := c.client.GetImage(ctx, spec.Image)
	if err != nil {
		return "", classify("get image "+spec.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
	}
	if len(spec.Cmd) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Cmd...))
	}
	if spec.Workdir != "" {
		opts = append(opts, oci.WithProcessCwd(spec.Workdir))
	}
	if spec.Privileged {
		opts = append(opts, oci.WithPrivileged)
	}
	if spec.CPUShares > 0 {
		opts = append(opts, oci.WithCPUShares(uint64(spec.CPUShares)))
	}
	if spec.MemLimit > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(spec.MemLimit)))
	}

	var mounts []specs.Mount
	for _, bind := range spec.Binds {
		m, ok := parseBind(bind)
		if ok {
			mounts = append(mounts, m)
		}
	}
	if len(mounts) > 0 {
		opts = append(opts, oci.WithMounts(mounts))
	}

	ctr, err := c.client.NewContainer(
		ctx,
		spec.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.Name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", classify("create container "+spec.Name, err)
	}
	return ctr.ID(), nil
}

func parseBind(bind string) (specs.Mount, bool) {
	parts := strings.Split(bind, ":")
	if len(parts) < 2 {
		return specs.Mount{}, false
	}
	options := []string{"bind"}
	if len(parts) >= 3 && parts[2] == "ro" {
		options = append(options, "ro")
	} else {
		options = append(options, "rw")
	}
	return specs.Mount{Source: parts[0], Destination: parts[1], Type: "bind", Options: options}, true
}

// Start creates a task for a previously created container and starts it.
func (c *ContainerdClient) Start(ctx context.Context, id string) error {
	ctx = c.ctx(ctx)
	ctr, err := c.client.LoadContainer(ctx, id)
	if err != nil {
		return classify("load container "+id, err)
	}
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return classify("create task "+id, err)
	}
	if err := task.Start(ctx); err != nil {
		return classify("start task "+id, err)
	}
	return nil
}

// Stop sends SIGTERM, waits up to timeout for the task to exit, then
// escalates to SIGKILL, and finally deletes the exited task.
func (c *ContainerdClient) Stop(ctx context.Context, id string, timeout time.Duration) error {
	ctx = c.ctx(ctx)
	ctr, err := c.client.LoadContainer(ctx, id)
	if err != nil {
		return classify("load container "+id, err)
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil // no task: already stopped
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(ctx, syscall.SIGTERM); err != nil {
		return classify("kill task "+id, err)
	}

	// Wait on the outer (unbounded) ctx, not stopCtx: stopCtx's deadline
	// only governs how long we wait before escalating to SIGKILL, and the
	// wait must keep listening past that deadline for the task to
	// actually exit before Delete runs.
	statusC, err := task.Wait(ctx)
	if err != nil {
		return classify("wait task "+id, err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return classify("force kill task "+id, err)
		}
		<-statusC
	}

	if _, err := task.Delete(ctx); err != nil {
		return classify("delete task "+id, err)
	}
	return nil
}

// Remove stops (if running) and deletes id and its snapshot.
func (c *ContainerdClient) Remove(ctx context.Context, id string) error {
	ctx = c.ctx(ctx)
	ctr, err := c.client.LoadContainer(ctx, id)
	if err != nil {
		return nil // already gone
	}
	_ = c.Stop(ctx, id, 10*time.Second)
	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return classify("delete container "+id, err)
	}
	return nil
}

// Logs is not implemented by the containerd transport yet: containerd
// does not retain output once its cio pipes close, so this requires a log
// file sink wired at task creation.
func (c *ContainerdClient) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	return nil, types.NewAPIError(0, "logs: container %s: not implemented for the containerd transport", id)
}

// Attach is not implemented for the same reason as Logs.
func (c *ContainerdClient) Attach(ctx context.Context, id string) (io.ReadCloser, error) {
	return nil, types.NewAPIError(0, "attach: container %s: not implemented for the containerd transport", id)
}

// Exec runs cmd inside id's running task and returns its exit code,
// backing exec-type readiness probes.
func (c *ContainerdClient) Exec(ctx context.Context, id string, cmd []string, env []string) (int, error) {
	ctx = c.ctx(ctx)
	ctr, err := c.client.LoadContainer(ctx, id)
	if err != nil {
		return -1, classify("load container "+id, err)
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return -1, classify("get task "+id, err)
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return -1, classify("get spec "+id, err)
	}
	pspec := spec.Process
	pspec.Args = cmd
	pspec.Env = append(append([]string{}, pspec.Env...), env...)

	execID := fmt.Sprintf("exec-%d", time.Now().UnixNano())
	process, err := task.Exec(ctx, execID, pspec, cio.NullIO)
	if err != nil {
		return -1, classify("exec "+id, err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return -1, classify("exec wait "+id, err)
	}
	if err := process.Start(ctx); err != nil {
		return -1, classify("exec start "+id, err)
	}

	status := <-statusC
	return int(status.ExitCode()), nil
}
