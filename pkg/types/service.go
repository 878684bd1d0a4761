package types

import "strings"

// Service is a logical grouping of container instances sharing an image.
type Service struct {
	Name          string
	Image         string
	Env           map[string]string
	SchemaVersion int

	Requires  map[string]*Service // hard dependencies, by name
	WantsInfo map[string]*Service // soft dependencies (link vars only)
	NeededFor map[string]*Service // inverse of Requires, computed

	names      []string // container names, in registration (insertion) order
	Containers map[string]*Container
}

// NewService creates a Service with empty relation sets.
func NewService(name, image string, schema int) *Service {
	return &Service{
		Name:          name,
		Image:         image,
		Env:           map[string]string{},
		SchemaVersion: schema,
		Requires:      map[string]*Service{},
		WantsInfo:     map[string]*Service{},
		NeededFor:     map[string]*Service{},
		Containers:    map[string]*Container{},
	}
}

// ImageDetails splits Image into repository and tag, splitting on the
// final ':' only when the suffix contains no '/' (spec §3).
func (s *Service) ImageDetails() (repository, tag string) {
	idx := strings.LastIndex(s.Image, ":")
	if idx < 0 {
		return s.Image, "latest"
	}
	suffix := s.Image[idx+1:]
	if strings.Contains(suffix, "/") {
		return s.Image, "latest"
	}
	return s.Image[:idx], suffix
}

// AddDependency declares that s depends on dep (hard requirement).
func (s *Service) AddDependency(dep *Service) {
	s.Requires[dep.Name] = dep
	dep.NeededFor[s.Name] = s
}

// AddWantsInfo declares that s wants link variables from dep without a
// hard ordering dependency.
func (s *Service) AddWantsInfo(dep *Service) {
	s.WantsInfo[dep.Name] = dep
}

// RegisterContainer adds a container instance to this service, preserving
// the order containers were registered in (used for `{SVC}_INSTANCES` in
// LinkVariables).
func (s *Service) RegisterContainer(c *Container) {
	if _, exists := s.Containers[c.Name]; !exists {
		s.names = append(s.names, c.Name)
	}
	s.Containers[c.Name] = c
}

// OrderedContainers returns this service's containers sorted by name.
func (s *Service) OrderedContainers() []*Container {
	out := make([]*Container, 0, len(s.Containers))
	for _, c := range s.Containers {
		out = append(out, c)
	}
	SortContainers(out)
	return out
}

// baseName is the uppercase, non-alphanumerics-replaced form used for link
// variable naming, per spec §4.C.
func baseName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LinkVariables returns the link-variable environment additions
// contributed by this service: each container's own link variables,
// namespaced under the service's basename, plus `{SVC}_INSTANCES`.
func (s *Service) LinkVariables(addInternal bool) map[string]string {
	basename := baseName(s.Name)
	links := map[string]string{}
	for _, c := range s.Containers {
		for name, value := range c.LinkVariables(addInternal) {
			links[basename+"_"+name] = value
		}
	}
	links[basename+"_INSTANCES"] = strings.Join(s.names, ",")
	return links
}
