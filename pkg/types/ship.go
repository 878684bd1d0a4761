package types

import "time"

// Default ship attributes when the environment description omits them.
const (
	DefaultDockerPort    = 4243
	DefaultDockerVersion = "1.8"
	DefaultTimeout       = 5 * time.Second
	DefaultSSHPort       = 22
)

// SSHTunnel configures an SSH tunnel used to reach a ship's Docker daemon
// when it isn't directly reachable. Tunnel setup itself lives outside this
// module (spec §1); only the configuration shape is carried.
type SSHTunnel struct {
	User string
	Key  string
	Port int
}

// Ship is a reachable Docker daemon. Ships are created once at environment
// parse time and live for the whole process.
type Ship struct {
	Name string

	// IP is exposed to containers via CONTAINER_HOST_ADDRESS and link
	// variables, and is what Address returns when Endpoint is unset.
	IP string

	// Endpoint, when set, is a distinct control address that Address
	// returns instead of IP. The containerd client does not dial it.
	Endpoint string

	DockerPort    int
	DockerVersion string
	Timeout       time.Duration
	SSHTunnel     *SSHTunnel

	// BindToIP governs whether published ports default to binding on the
	// ship's IP (true) or on 0.0.0.0 (false).
	BindToIP bool
}

// NewShip applies the documented defaults to a partially populated Ship.
func NewShip(name, ip string) *Ship {
	return &Ship{
		Name:          name,
		IP:            ip,
		DockerPort:    DefaultDockerPort,
		DockerVersion: DefaultDockerVersion,
		Timeout:       DefaultTimeout,
	}
}

// Address returns the endpoint to dial: Endpoint if set, otherwise IP.
func (s *Ship) Address() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return s.IP
}

// BindHost returns the host to bind published ports on, per spec §4.F
// Start step 5: ship.IP when BindToIP is set, else "0.0.0.0".
func (s *Ship) BindHost() string {
	if s.BindToIP {
		return s.IP
	}
	return "0.0.0.0"
}
