package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingAuditor struct {
	ids       []string
	actions   []string
	successes []string
	errors    []string
}

func (r *recordingAuditor) Action(id string, names []string, verb string) {
	r.ids = append(r.ids, id)
	r.actions = append(r.actions, verb)
}
func (r *recordingAuditor) Success(id string, names []string, verb string) {
	r.ids = append(r.ids, id)
	r.successes = append(r.successes, verb)
}
func (r *recordingAuditor) Error(id string, names []string, verb string, message string) {
	r.ids = append(r.ids, id)
	r.errors = append(r.errors, verb+":"+message)
}

func TestRunSuccess(t *testing.T) {
	a := &recordingAuditor{}
	err := Run(a, []string{"web-1"}, "start", func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, []string{"start"}, a.actions)
	assert.Equal(t, []string{"start"}, a.successes)
	assert.Empty(t, a.errors)
}

func TestRunError(t *testing.T) {
	a := &recordingAuditor{}
	err := Run(a, []string{"web-1"}, "start", func() error { return errors.New("boom") })
	assert.Error(t, err)
	assert.Equal(t, []string{"start"}, a.actions)
	assert.Empty(t, a.successes)
	assert.Equal(t, []string{"start:boom"}, a.errors)
}

func TestRunNilAuditorDefaultsToNoop(t *testing.T) {
	err := Run(nil, []string{"web-1"}, "start", func() error { return nil })
	assert.NoError(t, err)
}

func TestRunCorrelatesActionAndSuccessWithTheSameID(t *testing.T) {
	a := &recordingAuditor{}
	err := Run(a, []string{"web-1"}, "start", func() error { return nil })
	assert.NoError(t, err)
	assert.Len(t, a.ids, 2)
	assert.NotEmpty(t, a.ids[0])
	assert.Equal(t, a.ids[0], a.ids[1])
}
