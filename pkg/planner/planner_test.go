package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

func buildChain(t *testing.T) (*types.Environment, *types.Service, *types.Service, *types.Service) {
	t.Helper()
	env := types.NewEnvironment("test")
	ship := types.NewShip("ship1", "10.0.0.1")
	env.Ships["ship1"] = ship

	db := types.NewService("db", "postgres", 2)
	api := types.NewService("api", "app", 2)
	web := types.NewService("web", "app", 2)
	env.Services["db"] = db
	env.Services["api"] = api
	env.Services["web"] = web

	api.AddDependency(db)
	web.AddDependency(api)

	types.NewContainer("db-1", ship, db, env.Name)
	types.NewContainer("api-1", ship, api, env.Name)
	types.NewContainer("web-1", ship, web, env.Name)

	for _, svc := range []*types.Service{db, api, web} {
		for _, c := range svc.OrderedContainers() {
			env.Containers[c.Name] = c
		}
	}
	return env, db, api, web
}

func TestOrderForward(t *testing.T) {
	env, _, _, _ := buildChain(t)
	ordered, err := Order(env.AllContainers(), Forward)
	assert.NoError(t, err)
	assert.Equal(t, []string{"db-1", "api-1", "web-1"}, names(ordered))
}

func TestOrderReverse(t *testing.T) {
	env, _, _, _ := buildChain(t)
	ordered, err := Order(env.AllContainers(), Reverse)
	assert.NoError(t, err)
	assert.Equal(t, []string{"web-1", "api-1", "db-1"}, names(ordered))
}

func TestOrderCycle(t *testing.T) {
	env := types.NewEnvironment("test")
	ship := types.NewShip("ship1", "10.0.0.1")

	a := types.NewService("a", "image", 2)
	b := types.NewService("b", "image", 2)
	a.AddDependency(b)
	b.AddDependency(a)

	ca := types.NewContainer("a-1", ship, a, env.Name)
	cb := types.NewContainer("b-1", ship, b, env.Name)

	_, err := Order([]*types.Container{ca, cb}, Forward)
	assert.Error(t, err)
	var depErr *types.DependencyError
	assert.ErrorAs(t, err, &depErr)
}

func TestGatherTransitive(t *testing.T) {
	env, _, api, _ := buildChain(t)
	seed := api.OrderedContainers()
	gathered := Gather(seed, Forward)
	assert.Equal(t, []string{"api-1", "db-1"}, names(gathered))
	_ = env
}

func names(containers []*types.Container) []string {
	out := make([]string, len(containers))
	for i, c := range containers {
		out[i] = c.Name
	}
	return out
}
