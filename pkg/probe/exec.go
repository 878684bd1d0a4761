package probe

import "context"

// Execer is the subset of the Docker client facade exec probes need. It is
// declared here, not imported from pkg/dockerclient, so the probe package
// stays decoupled from the transport that implements it (spec §9 "Probe
// polymorphism").
type Execer interface {
	Exec(ctx context.Context, containerID string, cmd []string, env []string) (exitCode int, err error)
}

// ExecProbe runs a command inside a running container and considers the
// target ready when the command exits 0.
type ExecProbe struct {
	Client      Execer
	ContainerID string
	Cmd         []string
	Env         []string
}

// Test runs the command once and reports whether it exited 0.
func (p *ExecProbe) Test() bool {
	code, err := p.Client.Exec(context.Background(), p.ContainerID, p.Cmd, p.Env)
	return err == nil && code == 0
}
