package types

import (
	"fmt"
	"strconv"
	"strings"
)

// PortSpec describes one named port mapping, per spec §6.
type PortSpec struct {
	// Exposed is "<port>/<proto>" as seen from inside the container.
	Exposed string

	// ExternalIP and ExternalPort describe the host-side binding;
	// ExternalPort is "<port>/<proto>".
	ExternalIP   string
	ExternalPort string
}

func validatePortProto(spec interface{}) (string, error) {
	var s string
	switch v := spec.(type) {
	case int:
		s = strconv.Itoa(v)
	case string:
		s = v
	default:
		return "", NewConfigurationError("invalid port specification %v", spec)
	}

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		if _, err := strconv.Atoi(parts[0]); err != nil {
			return "", NewConfigurationError(
				"invalid port specification %q: expected <port> or <port>/{tcp,udp}", s)
		}
		return parts[0] + "/tcp", nil
	case 2:
		if _, err := strconv.Atoi(parts[0]); err != nil {
			break
		}
		if parts[1] == "tcp" || parts[1] == "udp" {
			return s, nil
		}
	}
	return "", NewConfigurationError(
		"invalid port specification %q: expected <port> or <port>/{tcp,udp}", s)
}

// ParsePorts parses the raw `ports` mapping of a container config, per
// spec §6 "Port specification forms".
func ParsePorts(raw map[string]interface{}) (map[string]PortSpec, error) {
	result := make(map[string]PortSpec, len(raw))

	for name, spec := range raw {
		switch v := spec.(type) {
		case int:
			proto, err := validatePortProto(v)
			if err != nil {
				return nil, err
			}
			result[name] = PortSpec{Exposed: proto, ExternalIP: "0.0.0.0", ExternalPort: proto}

		case string:
			parts := strings.SplitN(v, ":", 3)
			if len(parts) > 2 {
				return nil, NewConfigurationError(
					"invalid port spec %q for port %q: format should be \"name: exposed:external\"", v, name)
			}
			exposed, err := validatePortProto(parts[0])
			if err != nil {
				return nil, err
			}
			external := exposed
			if len(parts) == 2 {
				external, err = validatePortProto(parts[1])
				if err != nil {
					return nil, err
				}
			}
			if protoSuffix(exposed) != protoSuffix(external) {
				return nil, NewConfigurationError(
					"mismatched protocols between %s and %s", exposed, external)
			}
			result[name] = PortSpec{Exposed: exposed, ExternalIP: "0.0.0.0", ExternalPort: external}

		case map[string]interface{}:
			exposedRaw, hasExposed := v["exposed"]
			externalRaw, hasExternal := v["external"]
			if !hasExposed || !hasExternal {
				return nil, NewConfigurationError(
					"invalid port spec for port %q: requires exposed and external", name)
			}
			exposed, err := validatePortProto(exposedRaw)
			if err != nil {
				return nil, err
			}

			var externalIP string
			var externalPortRaw interface{}
			switch ev := externalRaw.(type) {
			case []interface{}:
				if len(ev) != 2 {
					return nil, NewConfigurationError(
						"invalid external port spec for port %q", name)
				}
				ip, ok := ev[0].(string)
				if !ok {
					return nil, NewConfigurationError("invalid external ip for port %q", name)
				}
				externalIP = ip
				externalPortRaw = ev[1]
			default:
				externalIP = "0.0.0.0"
				externalPortRaw = ev
			}

			externalPort, err := validatePortProto(externalPortRaw)
			if err != nil {
				return nil, err
			}
			result[name] = PortSpec{Exposed: exposed, ExternalIP: externalIP, ExternalPort: externalPort}

		default:
			return nil, NewConfigurationError("invalid port spec %v for port %q", spec, name)
		}
	}

	return result, nil
}

func protoSuffix(portProto string) string {
	parts := strings.Split(portProto, "/")
	return parts[len(parts)-1]
}

// PortNumber extracts the numeric port from a "<port>/<proto>" string.
func PortNumber(portProto string) string {
	return strings.Split(portProto, "/")[0]
}

// VolumeSpec is a single resolved bind mount: host Source to container
// Target, read-only when RO.
type VolumeSpec struct {
	Source string
	Target string
	RO     bool
}

// ParseVolumes parses the raw `volumes` mapping, honoring the schema-1 vs
// schema-2 direction inversion documented in spec §6.
func ParseVolumes(raw map[string]interface{}, schema int) (map[string]VolumeSpec, error) {
	result := make(map[string]VolumeSpec, len(raw))

	for key, spec := range raw {
		switch v := spec.(type) {
		case string:
			var source, target string
			if schema <= 1 {
				target, source = key, v
			} else {
				source, target = key, v
			}
			if source == "" {
				source = target
			}
			result[target] = VolumeSpec{Source: source, Target: target}

		case map[string]interface{}:
			target, ok := v["target"].(string)
			if !ok || target == "" {
				return nil, NewConfigurationError(
					"invalid volume configuration for %q: missing target", key)
			}
			mode, _ := v["mode"].(string)
			for k := range v {
				if k != "target" && k != "mode" {
					return nil, NewConfigurationError(
						"invalid volume configuration for %q: unknown key %q", key, k)
				}
			}
			ro := false
			switch mode {
			case "", "rw":
				ro = false
			case "ro":
				ro = true
			default:
				return nil, NewConfigurationError(
					"invalid volume configuration for %q: unknown mode %q", key, mode)
			}
			result[target] = VolumeSpec{Source: key, Target: target, RO: ro}

		case []interface{}:
			return nil, NewConfigurationError(
				"invalid volume configuration for %q: list value not supported", key)

		default:
			return nil, NewConfigurationError("invalid volume configuration for %q", key)
		}
	}

	return result, nil
}

// RestartPolicy mirrors Docker's restart policy, defaulting to {no, 0}.
type RestartPolicy struct {
	Name              string
	MaximumRetryCount int
}

// DefaultRestartPolicy is applied when none, an unrecognized name, or a
// list is configured, per spec §3.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{Name: "no", MaximumRetryCount: 0}
}

// ParseRestartPolicy parses the raw `restart_policy` value.
func ParseRestartPolicy(raw interface{}) RestartPolicy {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return DefaultRestartPolicy()
	}

	name, _ := m["name"].(string)
	switch name {
	case "no", "always":
		return RestartPolicy{Name: name, MaximumRetryCount: 0}
	case "on-failure":
		retries := 0
		switch v := m["maximum_retry_count"].(type) {
		case int:
			retries = v
		}
		return RestartPolicy{Name: name, MaximumRetryCount: retries}
	default:
		return DefaultRestartPolicy()
	}
}

// ParseMemoryLimit parses a memory/swap limit, scaling the k/m/g suffix by
// 1024, 1024^2, 1024^3 respectively (spec §3, §8 property 5).
func ParseMemoryLimit(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		if v == "" {
			return 0, nil
		}
		suffix := strings.ToLower(v[len(v)-1:])
		units := map[string]int64{"k": 1024, "m": 1024 * 1024, "g": 1024 * 1024 * 1024}
		if mult, ok := units[suffix]; ok {
			n, err := strconv.ParseInt(v[:len(v)-1], 10, 64)
			if err != nil {
				return 0, NewConfigurationError("invalid memory limit %q", v)
			}
			return n * mult, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, NewConfigurationError("invalid memory limit %q", v)
		}
		return n, nil
	default:
		return 0, NewConfigurationError("invalid memory limit %v", raw)
	}
}

// ParseDNS normalizes the `dns` config value to a list: a bare string
// becomes a singleton list, a list passes through unchanged.
func ParseDNS(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, NewConfigurationError("invalid dns entry %v", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, NewConfigurationError("invalid dns configuration %v", raw)
	}
}

// EnvListExpand joins a list-valued env entry with spaces, matching the
// original's recursive flattening of nested list values.
func EnvListExpand(v interface{}) (string, error) {
	switch val := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			s, err := EnvListExpand(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}
