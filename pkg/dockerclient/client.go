// Package dockerclient is the per-ship Docker client facade. Every
// orchestration play that touches a container goes through a Client, never
// through containerd or the Docker HTTP API directly, so the rest of the
// tree can substitute an in-memory fake in tests.
package dockerclient

import (
	"context"
	"io"
	"time"
)

// Image describes one entry returned by Images.
type Image struct {
	Repository string
	Tag        string
	ID         string
}

// PullEvent is one line of registry pull progress, delivered to the
// callback passed to Pull. LayerID identifies which image layer the event
// describes, so callers can keep a progress map (spec.md §4.F Pull) keyed
// by layer and average across the map rather than trusting a single
// event's fraction to represent the whole image; empty means the event
// describes the pull as a whole rather than one layer. Current/Total are
// byte counts when known; both zero means the event carries no progress
// fraction for its layer.
type PullEvent struct {
	Status  string
	LayerID string
	Current int64
	Total   int64
}

// PullProgress receives PullEvents as a Pull call streams them.
type PullProgress func(PullEvent)

// AuthConfig is the credential set used to authenticate a Pull against a
// private registry.
type AuthConfig struct {
	Username string
	Password string
	Email    string
	Address  string
}

// PortBinding is the host-side half of a published port: the address Start
// binds the listener on (spec.md §4.F Start step 5's "ship's bind_host")
// and the host port forwarded to the container's exposed port.
type PortBinding struct {
	HostIP   string
	HostPort string
}

// CreateSpec is everything Create needs to instantiate a container. It is
// built from a *types.Container by the caller (pkg/plays), so Create
// takes plain values rather than the orchestration entities.
type CreateSpec struct {
	Name          string
	Image         string
	Cmd           []string
	Env           []string
	Ports         map[string]PortBinding // container port/proto -> host binding
	Binds         []string               // "host:container[:ro]"
	VolumesFrom   []string
	Workdir       string
	Privileged    bool
	DNS           []string
	CPUShares     int64
	MemLimit      int64
	MemSwapLimit  int64
	RestartPolicy RestartPolicy
}

// RestartPolicy mirrors types.RestartPolicy as a plain CreateSpec field.
type RestartPolicy struct {
	Name              string
	MaximumRetryCount int
}

// ContainerSummary is one entry from a bulk per-ship container listing —
// the subset of the Docker `/containers/json` payload plays.py's fast
// Status play consults: name, id, and a human-readable state string
// ("Up 3 hours", "Exited (0) 2 hours ago", ...).
type ContainerSummary struct {
	Name   string
	ID     string
	Status string
}

// Status is the live state of one container as last observed on its ship.
type Status struct {
	ID      string
	ImageID string // digest of the image the container was created from
	Running bool
	Exited  bool
	Raw     map[string]interface{}
}

// Client is the per-ship Docker control surface every play is built on.
// Implementations dial exactly one ship; the orchestration layer holds one
// Client per Ship for the lifetime of a run (spec.md §9 "Per-ship Docker
// client sharing").
type Client interface {
	// Inspect fetches the current status of a container. A not-found
	// container is not an error: Status.ID is empty.
	Inspect(ctx context.Context, name string) (Status, error)

	// ListContainers bulk-polls every container known to this ship's
	// daemon in one call, backing the fast Status play (spec.md §4.F
	// Status "fast"), which reports readiness from this single listing
	// rather than one Inspect per container.
	ListContainers(ctx context.Context) ([]ContainerSummary, error)

	// Images returns the images present on this ship's daemon.
	Images(ctx context.Context) ([]Image, error)

	// Login authenticates against a registry ahead of a Pull.
	Login(ctx context.Context, auth AuthConfig) error

	// Pull fetches an image, streaming progress to cb if non-nil.
	Pull(ctx context.Context, image string, cb PullProgress) error

	// Create instantiates (but does not start) a container.
	Create(ctx context.Context, spec CreateSpec) (id string, err error)

	// Start starts a previously created container.
	Start(ctx context.Context, id string) error

	// Stop stops a running container, sending SIGTERM and escalating to
	// SIGKILL if it has not exited within timeout.
	Stop(ctx context.Context, id string, timeout time.Duration) error

	// Remove deletes a container and its writable layer.
	Remove(ctx context.Context, id string) error

	// Logs returns a stream of the container's combined stdout/stderr.
	Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)

	// Attach connects to a running container's stdout/stderr stream
	// without replaying history, used by `logs --follow` against a
	// running container.
	Attach(ctx context.Context, id string) (io.ReadCloser, error)

	// Exec runs cmd inside a running container and returns its exit
	// code, backing exec-type readiness probes (pkg/probe.Execer).
	Exec(ctx context.Context, id string, cmd []string, env []string) (exitCode int, err error)
}
