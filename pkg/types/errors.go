package types

import "fmt"

// ConfigurationError is raised while parsing the environment description or
// constructing entities from it: bad schema, invalid port/volume/restart
// specs, an unknown dependency name, an incomplete registry record.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// DependencyError is raised by the planner when a set of containers cannot
// be ordered because their dependency graph contains a cycle.
type DependencyError struct {
	Msg string
}

func (e *DependencyError) Error() string { return e.Msg }

func NewDependencyError(format string, args ...interface{}) error {
	return &DependencyError{Msg: fmt.Sprintf(format, args...)}
}

// OrchestrationError is a play-level failure, e.g. a container failed to
// start or reach readiness. For fail-fast plays it aborts the remaining plan.
type OrchestrationError struct {
	Msg string
	Err error
}

func (e *OrchestrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

func NewOrchestrationError(msg string, err error) error {
	return &OrchestrationError{Msg: msg, Err: err}
}

// TransientError wraps a timeout or network failure observed while talking
// to a ship's Docker daemon. Recovered as a per-container failure; does not
// halt sibling branches that don't depend on the failing container.
type TransientError struct {
	Msg string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransientError(msg string, err error) error {
	return &TransientError{Msg: msg, Err: err}
}

// APIError wraps a non-2xx response from a ship's Docker daemon.
type APIError struct {
	Msg        string
	StatusCode int
}

func (e *APIError) Error() string { return e.Msg }

func NewAPIError(statusCode int, format string, args ...interface{}) error {
	return &APIError{Msg: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// ParameterError signals user misuse of a command, e.g. requesting logs for
// more than one container at a time.
type ParameterError struct {
	Msg string
}

func (e *ParameterError) Error() string { return e.Msg }

func NewParameterError(format string, args ...interface{}) error {
	return &ParameterError{Msg: fmt.Sprintf(format, args...)}
}
