package plays

import (
	"context"
	"strconv"
	"strings"

	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/metrics"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// loginToRegistry extracts the registry hostname from an image
// repository (the segment before the first '/' when it looks like a
// host:port or contains a '.', per spec.md §4.F "registry extraction")
// and logs in if a matching RegistryAuth is configured. Grounded on
// original_source/maestro/plays.py's _login_to_registry.
func loginToRegistry(ctx context.Context, client dockerclient.Client, repository string, registries map[string]*types.RegistryAuth) error {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) < 2 {
		return nil
	}
	host := parts[0]
	if !strings.ContainsAny(host, ".:") && host != "localhost" {
		return nil
	}
	auth, ok := registries[host]
	if !ok {
		return nil
	}
	if err := auth.Validate(); err != nil {
		return err
	}
	return client.Login(ctx, dockerclient.AuthConfig{
		Username: auth.Username,
		Password: auth.Password,
		Email:    auth.Email,
		Address:  auth.AuthURL,
	})
}

// averageProgress returns the mean completion percentage across every
// layer tracked so far, per spec.md §4.F Pull / plays.py's
// _update_pull_progress ("return the average of the download progress of
// all layers as an indication of the overall progress of the pull").
func averageProgress(progress map[string]float64) float64 {
	if len(progress) == 0 {
		return 0
	}
	var sum float64
	for _, p := range progress {
		sum += p
	}
	return sum / float64(len(progress))
}

// PullTasks builds the Pull play: log in to the image's registry if one
// is configured, then pull the image, averaging per-layer progress into
// one percentage per spec.md §4.F Pull ("Download complete" counts as
// 100%). Pull is fail-soft (spec.md §4.E) so tasks carry no
// predecessors — every container's image is pulled independently and
// concurrently regardless of start order.
func PullTasks(containers []*types.Container, clients Clients, registries map[string]*types.RegistryAuth, sink executor.ProgressSink) []executor.Task {
	if sink == nil {
		sink = executor.NopSink{}
	}
	tasks := make([]executor.Task, len(containers))
	for i, c := range containers {
		i, c := i, c
		tasks[i] = executor.Task{
			Name:      c.Name,
			Container: c,
			Run: func(ctx context.Context) error {
				client, err := clients.For(c.Ship)
				if err != nil {
					return err
				}
				repository, tag := c.Service.ImageDetails()
				if err := loginToRegistry(ctx, client, repository, registries); err != nil {
					return err
				}

				timer := metrics.NewTimer()
				progress := map[string]float64{}
				err = client.Pull(ctx, repository+":"+tag, func(ev dockerclient.PullEvent) {
					if ev.LayerID == "" {
						return
					}
					if ev.Status == "Download complete" {
						progress[ev.LayerID] = 100
					} else if ev.Total > 0 {
						progress[ev.LayerID] = 100 * float64(ev.Current) / float64(ev.Total)
					} else {
						return
					}
					pct := int(averageProgress(progress))
					sink.Progress(i, executor.PhaseProgress, c.Name+": pulling "+strconv.Itoa(pct)+"%")
				})
				timer.ObserveDuration(metrics.PullDuration)
				outcome := "ok"
				if err != nil {
					outcome = "error"
				}
				metrics.PullsTotal.WithLabelValues(outcome).Inc()
				return err
			},
		}
	}
	return tasks
}
