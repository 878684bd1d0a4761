package types

// Environment is the root aggregate owning every entity parsed from an
// environment description: ships, services, containers, registries, and
// audit sinks, keyed by name (spec §3).
type Environment struct {
	Name          string
	SchemaVersion int

	Ships      map[string]*Ship
	Services   map[string]*Service
	Containers map[string]*Container
	Registries map[string]*RegistryAuth

	// AuditConfig is the raw, provider-agnostic audit sink configuration;
	// pkg/audit turns it into concrete Auditor implementations.
	AuditConfig []map[string]interface{}
}

// NewEnvironment returns an empty Environment with the default schema.
func NewEnvironment(name string) *Environment {
	return &Environment{
		Name:          name,
		SchemaVersion: 1,
		Ships:         map[string]*Ship{},
		Services:      map[string]*Service{},
		Containers:    map[string]*Container{},
		Registries:    map[string]*RegistryAuth{},
	}
}

// ContainersOrServices expands a mixed list of container and service names
// into either a deduplicated, name-sorted set of containers, or a set of
// services, per spec §4.C. It fails if any name matches neither.
func (e *Environment) ContainersOrServices(names []string) ([]*Container, []*Service, error) {
	var containers []*Container
	var services []*Service
	seenC := map[string]bool{}
	seenS := map[string]bool{}

	for _, name := range names {
		switch {
		case e.Containers[name] != nil:
			if !seenC[name] {
				seenC[name] = true
				containers = append(containers, e.Containers[name])
			}
		case e.Services[name] != nil:
			if !seenS[name] {
				seenS[name] = true
				services = append(services, e.Services[name])
			}
		default:
			return nil, nil, NewConfigurationError("%s is neither a service nor a container", name)
		}
	}

	SortContainers(containers)
	return containers, services, nil
}

// ToContainers expands a mixed list of container/service names into the
// deduplicated, name-sorted list of containers it denotes.
func (e *Environment) ToContainers(names []string) ([]*Container, error) {
	var result []*Container
	seen := map[string]bool{}

	for _, name := range names {
		switch {
		case e.Containers[name] != nil:
			if !seen[name] {
				seen[name] = true
				result = append(result, e.Containers[name])
			}
		case e.Services[name] != nil:
			for _, c := range e.Services[name].Containers {
				if !seen[c.Name] {
					seen[c.Name] = true
					result = append(result, c)
				}
			}
		default:
			return nil, NewConfigurationError("%s is neither a service nor a container", name)
		}
	}

	SortContainers(result)
	return result, nil
}

// AllContainers returns every container in the environment, sorted by name.
func (e *Environment) AllContainers() []*Container {
	out := make([]*Container, 0, len(e.Containers))
	for _, c := range e.Containers {
		out = append(out, c)
	}
	SortContainers(out)
	return out
}
