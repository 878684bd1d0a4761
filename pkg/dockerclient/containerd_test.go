package dockerclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitRef(t *testing.T) {
	repo, tag := splitRef("quay.io/maestro/web:1.2.3")
	assert.Equal(t, "quay.io/maestro/web", repo)
	assert.Equal(t, "1.2.3", tag)

	repo, tag = splitRef("quay.io/maestro/web")
	assert.Equal(t, "quay.io/maestro/web", repo)
	assert.Equal(t, "latest", tag)

	repo, tag = splitRef("quay.io:8443/maestro/web")
	assert.Equal(t, "quay.io:8443/maestro/web", repo)
	assert.Equal(t, "latest", tag)
}

func TestParseBind(t *testing.T) {
	m, ok := parseBind("/data:/var/lib/app:ro")
	assert.True(t, ok)
	assert.Equal(t, "/data", m.Source)
	assert.Equal(t, "/var/lib/app", m.Destination)
	assert.Contains(t, m.Options, "ro")

	m, ok = parseBind("/data:/var/lib/app")
	assert.True(t, ok)
	assert.Contains(t, m.Options, "rw")

	_, ok = parseBind("not-a-bind")
	assert.False(t, ok)
}
