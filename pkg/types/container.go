package types

import (
	"fmt"
	"sort"
	"time"
)

// ProbeSpec is the unparsed configuration of one lifecycle check, carried
// as a type+raw-config pair so pkg/probe (which depends on pkg/types for
// port lookups) can build the concrete checker without an import cycle.
type ProbeSpec struct {
	Type string
	Raw  map[string]interface{}
}

// Status is the cached state of a container as last reported by its ship's
// Docker daemon.
type Status struct {
	ID      string
	Running bool
	Raw     map[string]interface{}
}

// Container is a concrete instance of a Service placed on a Ship.
type Container struct {
	Name    string
	Ship    *Ship
	Service *Service

	Cmd              []string
	Ports            map[string]PortSpec
	Env              map[string]string
	Volumes          map[string]VolumeSpec // target -> spec
	ContainerVolumes []string              // container-only paths
	VolumesFrom      []string              // names of other containers on same ship

	Workdir       string
	Privileged    bool
	DNS           []string
	StopTimeout   time.Duration
	CPUShares     int64
	MemLimit      int64
	MemSwapLimit  int64
	RestartPolicy RestartPolicy
	Lifecycle     map[string][]ProbeSpec

	status *Status
}

// NewContainer constructs a Container with the documented defaults and
// registers it with its service. envName is the environment's name,
// exposed to the container as MAESTRO_ENVIRONMENT_NAME.
func NewContainer(name string, ship *Ship, service *Service, envName string) *Container {
	c := &Container{
		Name:          name,
		Ship:          ship,
		Service:       service,
		Ports:         map[string]PortSpec{},
		Env:           map[string]string{},
		Volumes:       map[string]VolumeSpec{},
		StopTimeout:   10 * time.Second,
		RestartPolicy: DefaultRestartPolicy(),
		Lifecycle:     map[string][]ProbeSpec{},
	}
	service.RegisterContainer(c)

	c.Env["MAESTRO_ENVIRONMENT_NAME"] = envName
	c.Env["SERVICE_NAME"] = service.Name
	c.Env["CONTAINER_NAME"] = name
	c.Env["CONTAINER_HOST_ADDRESS"] = ship.IP

	return c
}

// ValidateVolumes enforces the disjointness invariants of spec §3: a bind
// target must not also be a container-only path, and volumes_from targets
// must exist and not overlap with this container's own mount set.
func (c *Container) ValidateVolumes(all map[string]*Container) error {
	containerOnly := make(map[string]bool, len(c.ContainerVolumes))
	for _, p := range c.ContainerVolumes {
		containerOnly[p] = true
	}
	for target := range c.Volumes {
		if containerOnly[target] {
			return NewConfigurationError(
				"container %s: %q is both a bind mount target and a container-only volume", c.Name, target)
		}
	}

	ownPaths := c.mountPaths()
	for _, from := range c.VolumesFrom {
		src, ok := all[from]
		if !ok {
			return NewConfigurationError(
				"container %s: volumes_from references unknown container %q", c.Name, from)
		}
		for p := range src.mountPaths() {
			if ownPaths[p] {
				return NewConfigurationError(
					"container %s: volume path %q conflicts with volumes_from source %q", c.Name, p, from)
			}
		}
	}
	return nil
}

func (c *Container) mountPaths() map[string]bool {
	paths := make(map[string]bool, len(c.Volumes)+len(c.ContainerVolumes))
	for target := range c.Volumes {
		paths[target] = true
	}
	for _, p := range c.ContainerVolumes {
		paths[p] = true
	}
	return paths
}

// Status returns the cached Docker status, or nil if never fetched.
func (c *Container) Status() *Status { return c.status }

// SetStatus updates the cached status. Single-writer: only the task
// currently acting on this container mutates it (spec §5).
func (c *Container) SetStatus(s *Status) { c.status = s }

// LinkVariables returns this container's own link-variable contribution:
// `{NAME}_HOST`, `{NAME}_{PORT}_PORT`, and (when addInternal)
// `{NAME}_{PORT}_INTERNAL_PORT`, per spec §4.C.
func (c *Container) LinkVariables(addInternal bool) map[string]string {
	basename := baseName(c.Name)
	links := map[string]string{basename + "_HOST": c.Ship.IP}
	for name, spec := range c.Ports {
		portBase := baseName(name)
		links[fmt.Sprintf("%s_%s_PORT", basename, portBase)] = PortNumber(spec.ExternalPort)
		if addInternal {
			links[fmt.Sprintf("%s_%s_INTERNAL_PORT", basename, portBase)] = PortNumber(spec.Exposed)
		}
	}
	return links
}

// Less orders containers by name, used for deterministic planning and
// display (spec §3 "containers compare by name").
func (c *Container) Less(other *Container) bool { return c.Name < other.Name }

// SortContainers sorts a slice of containers by name, ascending.
func SortContainers(containers []*Container) {
	sort.Slice(containers, func(i, j int) bool { return containers[i].Less(containers[j]) })
}
