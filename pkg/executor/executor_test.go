package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureSink struct {
	mu     sync.Mutex
	events []string
}

func (s *captureSink) Progress(index int, phase, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, phase+":"+text)
}

func TestRunOrdersByPredecessor(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	tasks := []Task{
		{Name: "db", Run: record("db")},
		{Name: "api", Predecessors: []string{"db"}, Run: record("api")},
		{Name: "web", Predecessors: []string{"api"}, Run: record("web")},
	}

	results := Run(context.Background(), tasks, Options{Parallelism: 2})
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.False(t, r.Skipped)
	}
	assert.Equal(t, []string{"db", "api", "web"}, order)
}

func TestRunFailSoftSkipsDependents(t *testing.T) {
	tasks := []Task{
		{Name: "a", Run: func(context.Context) error { return errors.New("boom") }},
		{Name: "b", Predecessors: []string{"a"}, Run: func(context.Context) error { return nil }},
		{Name: "c", Run: func(context.Context) error { return nil }},
	}

	results := Run(context.Background(), tasks, Options{Parallelism: 2, FailFast: false})
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.Error(t, byName["a"].Err)
	assert.True(t, byName["b"].Skipped)
	assert.NoError(t, byName["c"].Err)
	assert.False(t, byName["c"].Skipped)
}

func TestRunFailFastAbortsPlan(t *testing.T) {
	tasks := []Task{
		{Name: "a", Run: func(context.Context) error { return errors.New("boom") }},
		{Name: "b", Predecessors: []string{"a"}, Run: func(context.Context) error { return nil }},
	}

	sink := &captureSink{}
	results := Run(context.Background(), tasks, Options{Parallelism: 1, FailFast: true, Sink: sink})
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Error(t, byName["a"].Err)
	assert.True(t, byName["b"].Skipped)
}
