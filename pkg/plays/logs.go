package plays

import (
	"bufio"
	"context"
	"io"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Logs streams a single container's output to w: if the container is
// running and follow is true, it attaches to the live stream; otherwise
// it returns the last n lines, per spec.md §4.F Logs. Logs only ever
// operates on exactly one container — a multi-container selection is a
// ParameterError, raised by the caller before Logs is invoked.
func Logs(ctx context.Context, c *types.Container, clients Clients, follow bool, n int, w io.Writer) error {
	client, err := clients.For(c.Ship)
	if err != nil {
		return err
	}
	st, err := client.Inspect(ctx, c.Name)
	if err != nil {
		return types.NewOrchestrationError("logs "+c.Name, err)
	}

	if follow && st.Running {
		stream, err := client.Attach(ctx, c.Name)
		if err != nil {
			return types.NewOrchestrationError("attach "+c.Name, err)
		}
		defer stream.Close()
		_, err = io.Copy(w, stream)
		return err
	}

	stream, err := client.Logs(ctx, c.Name, false)
	if err != nil {
		return types.NewOrchestrationError("logs "+c.Name, err)
	}
	defer stream.Close()
	return writeLastLines(stream, n, w)
}

// writeLastLines copies at most n trailing lines from r to w, or the
// whole stream when n <= 0.
func writeLastLines(r io.Reader, n int, w io.Writer) error {
	if n <= 0 {
		_, err := io.Copy(w, r)
		return err
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range ring {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
