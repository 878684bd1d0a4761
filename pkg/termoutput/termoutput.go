// Package termoutput implements the default executor.ProgressSink: an
// append-only log with one line per progress event, labelled by
// container. Grounded on original_source/maestro/plays.py's
// OutputFormatter, which instead keeps one line per container and
// rewrites it in place through start/pending/end states; this package
// does not rewrite earlier lines.
package termoutput

import (
	"fmt"
	"io"
	"sync"
)

// Formatter renders one line per task, identified by its index in the
// plan. It is safe for concurrent use since the executor dispatches
// Progress calls from multiple worker goroutines.
type Formatter struct {
	mu  sync.Mutex
	out io.Writer

	labels map[int]string
}

// New returns a Formatter that writes to out, with labels giving each
// task index its display name (typically "container (service@ship)").
func New(out io.Writer, labels map[int]string) *Formatter {
	return &Formatter{out: out, labels: labels}
}

// Progress implements executor.ProgressSink, printing one line per
// event. Unlike the original's in-place terminal rewriting (which
// depends on cursor control escape sequences tied to a specific
// terminal), this prints an append-only log — still one line per
// transition, legible when piped or redirected.
func (f *Formatter) Progress(index int, phase, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	label := f.labels[index]
	if label == "" {
		label = text
	}
	switch phase {
	case "start":
		fmt.Fprintf(f.out, "%-40s %s\n", label, "...")
	case "progress":
		fmt.Fprintf(f.out, "%-40s %s\n", label, text)
	case "done":
		fmt.Fprintf(f.out, "%-40s %s\n", label, "done")
	case "failed":
		fmt.Fprintf(f.out, "%-40s %s\n", label, text)
	case "skipped":
		fmt.Fprintf(f.out, "%-40s %s\n", label, "skipped")
	default:
		fmt.Fprintf(f.out, "%-40s %s\n", label, text)
	}
}
