package termoutput

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, map[int]string{0: "web-1"})

	f.Progress(0, "start", "web-1")
	f.Progress(0, "done", "web-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "web-1")
	assert.Contains(t, lines[1], "done")
}

func TestProgressFallsBackToTextWhenLabelMissing(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, map[int]string{})
	f.Progress(3, "failed", "boom")
	assert.Contains(t, buf.String(), "boom")
}
