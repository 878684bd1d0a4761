package dockerclient

import (
	"context"
	"errors"

	"github.com/containerd/containerd/errdefs"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// classify maps a containerd/transport error onto the taxonomy plays and
// the executor branch on: a TransientError is worth retrying (dial
// refused, deadline exceeded), anything else that reached the daemon but
// failed is an APIError, and a nil passthrough stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errdefs.IsUnavailable(err) {
		return types.NewTransientError(op, err)
	}
	if errdefs.IsNotFound(err) {
		return types.NewAPIError(404, "%s: %v", op, err)
	}
	return types.NewAPIError(0, "%s: %v", op, err)
}
