// Package conductor builds an Environment from a parsed configuration
// document and exposes the command-level entry points every play is
// driven through — the same responsibilities original_source/maestro's
// Conductor class carries: resolving dependency edges, propagating link
// variables, selecting the containers a command applies to, and running
// a play to completion with auditing and metrics wrapped around it.
package conductor

import (
	"fmt"
	"time"

	"github.com/signalfuse/maestro-ng/pkg/config"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

// Build constructs a full Environment from doc: ships, registries,
// services and their container instances, the requires/wants_info
// dependency edges between services, and link-variable propagation.
// Grounded on original_source/maestro/maestro.py's Conductor.__init__,
// which performs exactly these steps in this order over the parsed YAML
// tree.
func Build(doc *config.Document) (*types.Environment, error) {
	name, err := doc.Name()
	if err != nil {
		return nil, err
	}

	env := types.NewEnvironment(name)
	env.SchemaVersion = doc.Schema()
	env.AuditConfig = doc.AuditConfig()

	ships, err := buildShips(doc.Ships())
	if err != nil {
		return nil, err
	}
	env.Ships = ships

	registries, err := buildRegistries(doc.Registries())
	if err != nil {
		return nil, err
	}
	env.Registries = registries

	if err := buildServices(env, doc.Services()); err != nil {
		return nil, err
	}
	if err := resolveDeps(env, doc.Services()); err != nil {
		return nil, err
	}
	for _, c := range env.Containers {
		if err := c.ValidateVolumes(env.Containers); err != nil {
			return nil, err
		}
	}

	PropagateLinks(env)
	return env, nil
}

func buildShips(raw interface{}) (map[string]*types.Ship, error) {
	ships := map[string]*types.Ship{}
	m, _ := raw.(map[string]interface{})
	for name, v := range m {
		cfg, ok := v.(map[string]interface{})
		if !ok {
			return nil, types.NewConfigurationError("ship %q: invalid configuration", name)
		}
		ip, _ := cfg["ip"].(string)
		if ip == "" {
			return nil, types.NewConfigurationError("ship %q is missing required key \"ip\"", name)
		}
		ship := types.NewShip(name, ip)
		if ep, ok := cfg["endpoint"].(string); ok {
			ship.Endpoint = ep
		}
		if p, ok := cfg["docker_port"].(int); ok {
			ship.DockerPort = p
		}
		if v, ok := cfg["docker_version"].(string); ok {
			ship.DockerVersion = v
		}
		if t, ok := cfg["timeout"].(int); ok {
			ship.Timeout = time.Duration(t) * time.Second
		}
		if b, ok := cfg["bind_to_ip"].(bool); ok {
			ship.BindToIP = b
		}
		ships[name] = ship
	}
	return ships, nil
}

func buildRegistries(raw map[string]interface{}) (map[string]*types.RegistryAuth, error) {
	registries := map[string]*types.RegistryAuth{}
	for name, v := range raw {
		cfg, ok := v.(map[string]interface{})
		if !ok {
			return nil, types.NewConfigurationError("registry %q: invalid configuration", name)
		}
		auth := &types.RegistryAuth{Name: name}
		auth.Username, _ = cfg["username"].(string)
		auth.Password, _ = cfg["password"].(string)
		auth.Email, _ = cfg["email"].(string)
		auth.AuthURL, _ = cfg["auth_url"].(string)
		if err := auth.Validate(); err != nil {
			return nil, err
		}
		registries[name] = auth
	}
	return registries, nil
}

func buildServices(env *types.Environment, raw map[string]interface{}) error {
	for svcName, v := range raw {
		m, ok := v.(map[string]interface{})
		if !ok {
			return types.NewConfigurationError("service %q: invalid configuration", svcName)
		}
		image, _ := m["image"].(string)
		svc := types.NewService(svcName, image, env.SchemaVersion)
		svcEnv, err := parseEnvMap(m["env"])
		if err != nil {
			return fmt.Errorf("service %s: %w", svcName, err)
		}
		for k, v := range svcEnv {
			svc.Env[k] = v
		}
		env.Services[svcName] = svc

		instances, _ := m["instances"].(map[string]interface{})
		for instName, iv := range instances {
			inst, ok := iv.(map[string]interface{})
			if !ok {
				return types.NewConfigurationError("container %q: invalid configuration", instName)
			}
			if err := buildContainer(env, svc, instName, m, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildContainer(env *types.Environment, svc *types.Service, name string, svcCfg, inst map[string]interface{}) error {
	shipName, _ := inst["ship"].(string)
	ship, ok := env.Ships[shipName]
	if !ok {
		return types.NewConfigurationError("container %q: unknown ship %q", name, shipName)
	}

	c := types.NewContainer(name, ship, svc, env.Name)

	if raw, ok := inst["ports"].(map[string]interface{}); ok {
		ports, err := types.ParsePorts(raw)
		if err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}
		c.Ports = ports
	}
	if raw, ok := inst["volumes"].(map[string]interface{}); ok {
		volumes, err := types.ParseVolumes(raw, env.SchemaVersion)
		if err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}
		c.Volumes = volumes
	}
	c.ContainerVolumes = parseStringList(inst["container_volumes"])
	c.VolumesFrom = parseStringList(inst["volumes_from"])
	c.Cmd = parseCmd(inst["cmd"])

	svcEnv, err := parseEnvMap(svcCfg["env"])
	if err != nil {
		return fmt.Errorf("service %s: %w", svc.Name, err)
	}
	instEnv, err := parseEnvMap(inst["env"])
	if err != nil {
		return fmt.Errorf("container %s: %w", name, err)
	}
	for k, v := range svcEnv {
		c.Env[k] = v
	}
	for k, v := range instEnv {
		c.Env[k] = v
	}

	if wd, ok := inst["workdir"].(string); ok {
		c.Workdir = wd
	} else if wd, ok := svcCfg["workdir"].(string); ok {
		c.Workdir = wd
	}
	if p, ok := inst["privileged"].(bool); ok {
		c.Privileged = p
	}
	dns, err := types.ParseDNS(firstNonNil(inst["dns"], svcCfg["dns"]))
	if err != nil {
		return fmt.Errorf("container %s: %w", name, err)
	}
	c.DNS = dns

	if t, ok := inst["stop_timeout"].(int); ok {
		c.StopTimeout = time.Duration(t) * time.Second
	}

	limits, _ := firstNonNil(inst["limits"], svcCfg["limits"]).(map[string]interface{})
	if limits != nil {
		if cpu, ok := limits["cpu"].(int); ok {
			c.CPUShares = int64(cpu)
		}
		memLimit, err := types.ParseMemoryLimit(limits["memory"])
		if err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}
		c.MemLimit = memLimit
		swapLimit, err := types.ParseMemoryLimit(limits["swap"])
		if err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}
		c.MemSwapLimit = swapLimit
	}

	c.RestartPolicy = types.ParseRestartPolicy(firstNonNil(inst["restart_policy"], svcCfg["restart_policy"]))

	lifecycle, err := parseLifecycle(firstNonNil(inst["lifecycle"], svcCfg["lifecycle"]))
	if err != nil {
		return fmt.Errorf("container %s: %w", name, err)
	}
	c.Lifecycle = lifecycle

	env.Containers[c.Name] = c
	return nil
}

func resolveDeps(env *types.Environment, raw map[string]interface{}) error {
	for svcName, v := range raw {
		m, _ := v.(map[string]interface{})
		svc := env.Services[svcName]
		for _, depName := range parseStringList(m["requires"]) {
			dep, ok := env.Services[depName]
			if !ok {
				return types.NewConfigurationError("service %q requires unknown service %q", svcName, depName)
			}
			svc.AddDependency(dep)
		}
		for _, depName := range parseStringList(m["wants_info"]) {
			dep, ok := env.Services[depName]
			if !ok {
				return types.NewConfigurationError("service %q wants_info from unknown service %q", svcName, depName)
			}
			svc.AddWantsInfo(dep)
		}
	}
	return nil
}

// PropagateLinks sets every container's link-variable environment
// entries: its own service's link variables (with internal ports, since
// same-service peers may dial each other's exposed port directly), plus
// the link variables of every service in its *transitive* requires
// closure and of every service it directly wants info from (without
// internal ports, since only hard/soft dependents are exposed that way).
// Grounded on maestro.py's Conductor.__init__ link variable propagation
// loop, whose `service.requires` is itself the transitive closure
// (entities.py); `wants_info` is not walked transitively.
func PropagateLinks(env *types.Environment) {
	for _, svc := range env.Services {
		own := svc.LinkVariables(true)
		deps := transitiveRequires(svc)
		for n, s := range svc.WantsInfo {
			deps[n] = s
		}
		for _, c := range svc.Containers {
			for k, v := range own {
				c.Env[k] = v
			}
			for _, dep := range deps {
				for k, v := range dep.LinkVariables(false) {
					c.Env[k] = v
				}
			}
		}
	}
}

// transitiveRequires returns every service reachable from svc by
// following Requires edges, svc itself excluded.
func transitiveRequires(svc *types.Service) map[string]*types.Service {
	result := map[string]*types.Service{}
	var visit func(s *types.Service)
	visit = func(s *types.Service) {
		for name, dep := range s.Requires {
			if _, seen := result[name]; seen {
				continue
			}
			result[name] = dep
			visit(dep)
		}
	}
	visit(svc)
	return result
}

func parseStringList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseCmd(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	default:
		return nil
	}
}

func parseEnvMap(raw interface{}) (map[string]string, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, err := types.EnvListExpand(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// parseLifecycle turns the raw `lifecycle` mapping (keyed by state, e.g.
// "running", each a list of probe configs) into ProbeSpecs.
func parseLifecycle(raw interface{}) (map[string][]types.ProbeSpec, error) {
	result := map[string][]types.ProbeSpec{}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return result, nil
	}
	for state, v := range m {
		checks, ok := v.([]interface{})
		if !ok {
			return nil, types.NewConfigurationError("lifecycle state %q: expected a list of checks", state)
		}
		specs := make([]types.ProbeSpec, 0, len(checks))
		for _, cv := range checks {
			cm, ok := cv.(map[string]interface{})
			if !ok {
				return nil, types.NewConfigurationError("lifecycle state %q: invalid check", state)
			}
			typ, _ := cm["type"].(string)
			if typ == "" {
				return nil, types.NewConfigurationError("lifecycle state %q: check is missing \"type\"", state)
			}
			specs = append(specs, types.ProbeSpec{Type: typ, Raw: cm})
		}
		result[state] = specs
	}
	return result, nil
}

func firstNonNil(values ...interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
