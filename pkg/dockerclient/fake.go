package dockerclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Client used by tests elsewhere in the tree
// (pkg/plays) that need to drive a play
// without a live Docker daemon, per spec.md §9 "Per-ship Docker client
// sharing". It is safe for concurrent use, since the executor dispatches
// tasks against the same Client instance from multiple goroutines.
type Fake struct {
	mu sync.Mutex

	Images_    []Image
	containers map[string]*fakeContainer
	ExecFunc   func(id string, cmd []string) (int, error)
	PullFunc   func(image string) error
	FailStart  map[string]bool
	FailCreate map[string]bool
	nextID     int
}

type fakeContainer struct {
	id      string
	imageID string
	spec    CreateSpec
	running bool
	exited  bool
}

// NewFake returns an empty Fake ready for use.
func NewFake() *Fake {
	return &Fake{containers: map[string]*fakeContainer{}}
}

func (f *Fake) Inspect(ctx context.Context, name string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return Status{}, nil
	}
	return Status{ID: c.id, ImageID: c.imageID, Running: c.running, Exited: c.exited}, nil
}

func (f *Fake) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := make([]ContainerSummary, 0, len(f.containers))
	for name, c := range f.containers {
		status := "Exited (0) moments ago"
		if c.running {
			status = "Up moments"
		}
		summaries = append(summaries, ContainerSummary{Name: name, ID: c.id, Status: status})
	}
	return summaries, nil
}

func (f *Fake) Images(ctx context.Context) ([]Image, error) {
	return f.Images_, nil
}

func (f *Fake) Login(ctx context.Context, auth AuthConfig) error { return nil }

func (f *Fake) Pull(ctx context.Context, image string, cb PullProgress) error {
	if cb != nil {
		cb(PullEvent{Status: "pulling " + image})
		cb(PullEvent{LayerID: "layer1", Current: 50, Total: 100})
		cb(PullEvent{LayerID: "layer2", Current: 100, Total: 100, Status: "Download complete"})
		cb(PullEvent{LayerID: "layer1", Current: 100, Total: 100, Status: "Download complete"})
		cb(PullEvent{Status: "downloaded"})
	}
	if f.PullFunc != nil {
		return f.PullFunc(image)
	}
	return nil
}

func (f *Fake) Create(ctx context.Context, spec CreateSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate[spec.Name] {
		return "", fmt.Errorf("fake: create %s: forced failure", spec.Name)
	}
	f.nextID++
	id := fmt.Sprintf("%s-%d", spec.Name, f.nextID)
	f.containers[spec.Name] = &fakeContainer{id: id, spec: spec, imageID: f.imageIDFor(spec.Image)}
	return id, nil
}

// imageIDFor looks up the id Images_ currently reports for image's
// repository:tag, simulating what the daemon would have resolved the
// image to at create time.
func (f *Fake) imageIDFor(image string) string {
	repo, tag := image, "latest"
	if i := strings.LastIndex(image, ":"); i >= 0 && !strings.Contains(image[i:], "/") {
		repo, tag = image[:i], image[i+1:]
	}
	for _, img := range f.Images_ {
		if img.Repository == repo && img.Tag == tag {
			return img.ID
		}
	}
	return ""
}

func (f *Fake) Start(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := f.nameByID(id)
	if f.FailStart[name] {
		return fmt.Errorf("fake: start %s: forced failure", name)
	}
	if c, ok := f.containers[name]; ok {
		c.running = true
		c.exited = false
	}
	return nil
}

func (f *Fake) Stop(ctx context.Context, id string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[f.nameByID(id)]; ok {
		c.running = false
		c.exited = true
	}
	return nil
}

func (f *Fake) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, f.nameByID(id))
	return nil
}

func (f *Fake) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *Fake) Attach(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *Fake) Exec(ctx context.Context, id string, cmd []string, env []string) (int, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(id, cmd)
	}
	return 0, nil
}

func (f *Fake) nameByID(id string) string {
	for name, c := range f.containers {
		if c.id == id {
			return name
		}
	}
	return id
}
