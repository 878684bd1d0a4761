// Package audit wraps each play with before/success/error hooks so an
// external system of record can track what the conductor actually did.
// Grounded on pkg/events/events.go's sink/dispatch shape, narrowed to the
// three-hook interface a play needs.
package audit

import (
	"strings"

	"github.com/google/uuid"

	"github.com/signalfuse/maestro-ng/pkg/log"
)

// Auditor is notified around every play. id correlates the three calls for
// one play (a fresh uuid per Run, so a log aggregator or external audit
// sink can group "play starting"/"play succeeded or failed" for the same
// invocation). names is the set of container or service names the play
// targeted; verb is the play's command name ("start", "stop", "pull", ...).
type Auditor interface {
	Action(id string, names []string, verb string)
	Success(id string, names []string, verb string)
	Error(id string, names []string, verb string, message string)
}

// NoopAuditor discards every hook; the default when no audit sink is
// configured.
type NoopAuditor struct{}

func (NoopAuditor) Action(id string, names []string, verb string)                {}
func (NoopAuditor) Success(id string, names []string, verb string)               {}
func (NoopAuditor) Error(id string, names []string, verb string, message string) {}

// LogAuditor records every hook as a structured log line through
// pkg/log, the stock non-trivial Auditor.
type LogAuditor struct{}

func (LogAuditor) Action(id string, names []string, verb string) {
	log.Logger.Info().
		Str("component", "audit").
		Str("audit_id", id).
		Str("verb", verb).
		Str("targets", strings.Join(names, ",")).
		Msg("play starting")
}

func (LogAuditor) Success(id string, names []string, verb string) {
	log.Logger.Info().
		Str("component", "audit").
		Str("audit_id", id).
		Str("verb", verb).
		Str("targets", strings.Join(names, ",")).
		Msg("play succeeded")
}

func (LogAuditor) Error(id string, names []string, verb string, message string) {
	log.Logger.Error().
		Str("component", "audit").
		Str("audit_id", id).
		Str("verb", verb).
		Str("targets", strings.Join(names, ",")).
		Str("error", message).
		Msg("play failed")
}

// Run wraps fn with the Action/Success/Error hooks, reporting a fresh
// correlation id plus names/verb to auditor, and re-raising fn's error
// after Error fires, per spec.md §4.G's "wrapped by auditor.action ... on
// exception, auditor.error ... then re-raise".
func Run(auditor Auditor, names []string, verb string, fn func() error) error {
	if auditor == nil {
		auditor = NoopAuditor{}
	}
	id := uuid.NewString()
	auditor.Action(id, names, verb)
	if err := fn(); err != nil {
		auditor.Error(id, names, verb, err.Error())
		return err
	}
	auditor.Success(id, names, verb)
	return nil
}
