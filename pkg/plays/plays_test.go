package plays

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/probe"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

func buildChain(t *testing.T) (*types.Container, *types.Container, ClientMap) {
	t.Helper()
	ship := types.NewShip("ship1", "10.0.0.1")
	db := types.NewService("db", "postgres:14", 2)
	api := types.NewService("api", "app:latest", 2)
	api.AddDependency(db)

	dbC := types.NewContainer("db-1", ship, db, "env")
	apiC := types.NewContainer("api-1", ship, api, "env")

	clients := ClientMap{"ship1": dockerclient.NewFake()}
	return dbC, apiC, clients
}

func TestLoginToRegistryExtractsHost(t *testing.T) {
	fake := dockerclient.NewFake()
	registries := map[string]*types.RegistryAuth{
		"quay.io": {Name: "quay.io", Username: "bot", Password: "secret"},
	}
	err := loginToRegistry(context.Background(), fake, "quay.io/myorg/app", registries)
	assert.NoError(t, err)
}

func TestLoginToRegistrySkipsPlainDockerHubRepo(t *testing.T) {
	fake := dockerclient.NewFake()
	err := loginToRegistry(context.Background(), fake, "library/app", map[string]*types.RegistryAuth{})
	assert.NoError(t, err)
}

func TestSplitImage(t *testing.T) {
	repo, tag := splitImage("postgres:14")
	assert.Equal(t, "postgres", repo)
	assert.Equal(t, "14", tag)

	repo, tag = splitImage("quay.io/myorg/app")
	assert.Equal(t, "quay.io/myorg/app", repo)
	assert.Equal(t, "latest", tag)
}

func TestStartThenStopLifecycle(t *testing.T) {
	dbC, _, clients := buildChain(t)
	ctx := context.Background()

	err := startOne(ctx, dbC, clients, StartOptions{})
	require.NoError(t, err)

	client, _ := clients.For(dbC.Ship)
	st, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	assert.True(t, st.Running)

	err = stopOne(ctx, dbC, clients, false)
	require.NoError(t, err)

	st, err = client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	assert.False(t, st.Running)
}

func TestStartRecreatesARunningButUnhealthyContainer(t *testing.T) {
	dbC, _, clients := buildChain(t)
	dbC.Lifecycle = map[string][]types.ProbeSpec{
		"running": {{Type: "exec", Raw: map[string]interface{}{"cmd": "healthcheck"}}},
	}
	ctx := context.Background()
	fake := clients["ship1"].(*dockerclient.Fake)

	opts := StartOptions{Probes: &probe.Factory{}}

	// The health check fails, so the start itself fails, but the
	// container is left running.
	fake.ExecFunc = func(id string, cmd []string) (int, error) { return 1, nil }
	require.Error(t, startOne(ctx, dbC, clients, opts))

	client, _ := clients.For(dbC.Ship)
	firstID, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	require.True(t, firstID.Running)

	// The health check still fails: a second Start must not treat the
	// running-but-unhealthy container as already up, it must recreate it.
	require.Error(t, startOne(ctx, dbC, clients, opts))
	secondID, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	assert.NotEqual(t, firstID.ID, secondID.ID)

	// Once the health check passes, Start becomes a true no-op.
	fake.ExecFunc = func(id string, cmd []string) (int, error) { return 0, nil }
	require.NoError(t, startOne(ctx, dbC, clients, opts))
	thirdID, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	require.NoError(t, startOne(ctx, dbC, clients, opts))
	fourthID, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)
	assert.Equal(t, thirdID.ID, fourthID.ID)
}

func TestStartIsIdempotent(t *testing.T) {
	dbC, _, clients := buildChain(t)
	ctx := context.Background()

	require.NoError(t, startOne(ctx, dbC, clients, StartOptions{}))
	require.NoError(t, startOne(ctx, dbC, clients, StartOptions{}))
}

func TestRestartPlanSkipsUnchangedImage(t *testing.T) {
	dbC, _, clients := buildChain(t)
	ctx := context.Background()
	require.NoError(t, startOne(ctx, dbC, clients, StartOptions{}))

	client, _ := clients.For(dbC.Ship)
	st, err := client.Inspect(ctx, dbC.Name)
	require.NoError(t, err)

	fake := clients["ship1"].(*dockerclient.Fake)
	fake.Images_ = []dockerclient.Image{{Repository: "postgres", Tag: "14", ID: st.ImageID}}

	stopPhase, startPhase := RestartPlan(ctx, []*types.Container{dbC}, clients, RestartOptions{OnlyIfChanged: true})
	assert.Empty(t, stopPhase)
	assert.Empty(t, startPhase)

	fake.Images_ = []dockerclient.Image{{Repository: "postgres", Tag: "14", ID: "different-id"}}
	stopPhase, startPhase = RestartPlan(ctx, []*types.Container{dbC}, clients, RestartOptions{OnlyIfChanged: true})
	assert.Len(t, stopPhase, 1)
	assert.Len(t, startPhase, 1)
}

func TestForwardDepsFollowsRequiresNotSlicePosition(t *testing.T) {
	ship := types.NewShip("ship1", "10.0.0.1")
	db := types.NewService("db", "postgres:14", 2)
	cache := types.NewService("cache", "redis:7", 2)
	api := types.NewService("api", "app:latest", 2)
	web := types.NewService("web", "front:latest", 2)
	api.AddDependency(db)
	cache.AddDependency(db)
	web.AddDependency(api)
	web.AddDependency(cache)

	dbC := types.NewContainer("db-1", ship, db, "env")
	cacheC := types.NewContainer("cache-1", ship, cache, "env")
	apiC := types.NewContainer("api-1", ship, api, "env")
	webC := types.NewContainer("web-1", ship, web, "env")

	// Deliberately out of dependency order: if predecessors were derived
	// from slice position, web-1 (index 0) would wrongly appear to have
	// no predecessors at all.
	all := []*types.Container{webC, apiC, cacheC, dbC}

	assert.Empty(t, forwardDeps(indexOf(all, dbC), all))
	assert.ElementsMatch(t, []string{"db-1"}, forwardDeps(indexOf(all, apiC), all))
	assert.ElementsMatch(t, []string{"db-1"}, forwardDeps(indexOf(all, cacheC), all))
	assert.ElementsMatch(t, []string{"api-1", "cache-1"}, forwardDeps(indexOf(all, webC), all))

	assert.ElementsMatch(t, []string{"web-1"}, reverseDeps(indexOf(all, apiC), all))
	assert.ElementsMatch(t, []string{"web-1"}, reverseDeps(indexOf(all, cacheC), all))
	assert.ElementsMatch(t, []string{"api-1", "cache-1"}, reverseDeps(indexOf(all, dbC), all))
	assert.Empty(t, reverseDeps(indexOf(all, webC), all))
}

func indexOf(containers []*types.Container, target *types.Container) int {
	for i, c := range containers {
		if c == target {
			return i
		}
	}
	return -1
}

func TestDepTreePrintsDuplicatesOnceWhenNotRecursive(t *testing.T) {
	db := types.NewService("db", "postgres:14", 2)
	cache := types.NewService("cache", "redis:7", 2)
	api := types.NewService("api", "app:latest", 2)
	web := types.NewService("web", "front:latest", 2)
	api.AddDependency(db)
	api.AddDependency(cache)
	web.AddDependency(api)
	web.AddDependency(db)

	var buf bytes.Buffer
	DepTree(&buf, []*types.Service{web}, false)
	out := buf.String()
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "(...)")
}

func TestAverageProgressMeansAcrossLayers(t *testing.T) {
	assert.Equal(t, 0.0, averageProgress(map[string]float64{}))
	assert.Equal(t, 50.0, averageProgress(map[string]float64{"a": 25, "b": 75}))
	assert.Equal(t, 100.0, averageProgress(map[string]float64{"a": 100, "b": 100}))
}

func TestStatusTasksReportsFastBulkStatus(t *testing.T) {
	dbC, apiC, clients := buildChain(t)
	ctx := context.Background()
	require.NoError(t, startOne(ctx, dbC, clients, StartOptions{}))

	containers := []*types.Container{dbC, apiC}
	results := make([]StatusResult, len(containers))
	tasks := StatusTasks(containers, clients, results)
	for _, task := range tasks {
		require.NoError(t, task.Run(ctx))
	}

	assert.True(t, results[0].Status.Running)
	assert.NotEmpty(t, results[0].Status.ID)
	assert.LessOrEqual(t, len(results[0].Status.ID), 7)
	assert.False(t, results[1].Status.Running)
}

func TestWriteLastLinesBoundsOutput(t *testing.T) {
	var buf bytes.Buffer
	err := writeLastLines(bytes.NewBufferString("a\nb\nc\nd\n"), 2, &buf)
	require.NoError(t, err)
	assert.Equal(t, "c\nd\n", buf.String())
}
