package dockerclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeLifecycle(t *testing.T) {
	var f Client = NewFake()
	ctx := context.Background()

	id, err := f.Create(ctx, CreateSpec{Name: "web-1", Image: "nginx:latest"})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	status, err := f.Inspect(ctx, "web-1")
	assert.NoError(t, err)
	assert.False(t, status.Running)

	assert.NoError(t, f.Start(ctx, id))
	status, _ = f.Inspect(ctx, "web-1")
	assert.True(t, status.Running)

	assert.NoError(t, f.Stop(ctx, id, 0))
	status, _ = f.Inspect(ctx, "web-1")
	assert.False(t, status.Running)
	assert.True(t, status.Exited)

	assert.NoError(t, f.Remove(ctx, id))
	status, _ = f.Inspect(ctx, "web-1")
	assert.Empty(t, status.ID)
}

func TestFakeForcedFailures(t *testing.T) {
	fake := NewFake()
	fake.FailCreate = map[string]bool{"broken": true}
	_, err := fake.Create(context.Background(), CreateSpec{Name: "broken"})
	assert.Error(t, err)

	fake.FailStart = map[string]bool{"web-1": true}
	id, err := fake.Create(context.Background(), CreateSpec{Name: "web-1"})
	assert.NoError(t, err)
	assert.Error(t, fake.Start(context.Background(), id))
}
