package plays

import (
	"github.com/signalfuse/maestro-ng/pkg/executor"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// KillTasks builds the Kill play: identical to Stop but always uses a
// zero stop_start_delay and forces the container down immediately
// rather than waiting out its configured stop_timeout (spec.md §4.F).
func KillTasks(containers []*types.Container, clients Clients) []executor.Task {
	return StopTasks(containers, clients, true)
}
