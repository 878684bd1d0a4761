package probe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Factory builds Checkers from a container's lifecycle probe specs.
type Factory struct{}

// New dispatches on spec.Type (tcp, http, exec); an unknown type is a
// ConfigurationError (spec §4.A). containerID is the live Docker id to
// exec into; it is ignored by the tcp and http variants. exec is the
// container's own ship's client facade — passed in rather than held on
// the Factory, since a Factory is shared across every ship in the plan
// while the right Execer varies per container.
func (f *Factory) New(c *types.Container, spec types.ProbeSpec, containerID string, exec Execer) (Checker, error) {
	switch spec.Type {
	case "tcp":
		return f.newTCP(c, spec.Raw)
	case "http":
		return f.newHTTP(c, spec.Raw)
	case "exec":
		return f.newExec(c, spec.Raw, containerID, exec)
	default:
		return nil, types.NewConfigurationError("unknown probe type %q", spec.Type)
	}
}

func resolvePort(c *types.Container, raw map[string]interface{}) (string, int, error) {
	name, _ := raw["port"].(string)
	spec, ok := c.Ports[name]
	if !ok {
		return "", 0, types.NewConfigurationError(
			"container %s: probe references unknown port %q", c.Name, name)
	}
	portStr := types.PortNumber(spec.ExternalPort)
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, types.NewConfigurationError("container %s: invalid port %q", c.Name, portStr)
	}
	return spec.ExternalPort, port, nil
}

func (f *Factory) newTCP(c *types.Container, raw map[string]interface{}) (Checker, error) {
	portProto, port, err := resolvePort(c, raw)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(portProto, "/udp") {
		return nil, types.NewConfigurationError(
			"container %s: tcp probe cannot target a udp port", c.Name)
	}
	return NewTCPProbe(c.Ship.IP, port), nil
}

func (f *Factory) newHTTP(c *types.Container, raw map[string]interface{}) (Checker, error) {
	_, port, err := resolvePort(c, raw)
	if err != nil {
		return nil, err
	}

	p := &HTTPProbe{Host: c.Ship.IP, Port: port}
	if method, ok := raw["method"].(string); ok {
		p.Method = method
	}
	if path, ok := raw["path"].(string); ok {
		p.Path = path
	}
	if scheme, ok := raw["scheme"].(string); ok {
		p.Scheme = scheme
	}
	if match, ok := raw["match"].(string); ok && match != "" {
		re, err := regexp.Compile(match)
		if err != nil {
			return nil, types.NewConfigurationError(
				"container %s: invalid probe match regexp %q: %v", c.Name, match, err)
		}
		p.Match = re
	}
	return p, nil
}

func (f *Factory) newExec(c *types.Container, raw map[string]interface{}, containerID string, exec Execer) (Checker, error) {
	if exec == nil {
		return nil, types.NewConfigurationError(
			"container %s: exec probes require a Docker client facade", c.Name)
	}

	var cmd []string
	switch v := raw["cmd"].(type) {
	case string:
		cmd = strings.Fields(v)
	case []interface{}:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, types.NewConfigurationError("container %s: invalid exec probe command", c.Name)
			}
			cmd = append(cmd, s)
		}
	default:
		return nil, types.NewConfigurationError("container %s: exec probe requires cmd", c.Name)
	}

	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}

	return &ExecProbe{Client: exec, ContainerID: containerID, Cmd: cmd, Env: env}, nil
}
