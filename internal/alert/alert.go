// Package alert evaluates a declarative rule set against the latest
// snapshot and optimization output.
//
// Rules are data, not branching code: each is a (predicate, severity,
// message) entry registered into the engine, so extending the rule set
// never touches engine internals.
package alert

import (
	"time"

	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/optimize"
	"github.com/debtwise/debtwise/internal/phase"
	"github.com/debtwise/debtwise/internal/projection"
)

// Severity orders alerts for downstream sorting and paging:
// CRITICAL > WARNING > INFO.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// Alert is one user-facing warning or notice. Alerts are de-duplicated
// per evaluation cycle by (Kind, Subject).
type Alert struct {
	Kind     string
	Severity Severity
	Subject  string
	Message  string
	At       time.Time
}

// Input is the immutable view one evaluation cycle runs against.
type Input struct {
	Snapshot      *projection.Snapshot
	Accounts      []ledger.Account
	Opportunities []optimize.Opportunity
	Phase         phase.Phase
	Now           time.Time
}

// Firing is one (subject, message) produced by a rule.
type Firing struct {
	Subject string
	Message string
}

// Rule is one declarative entry in the rule set.
type Rule struct {
	Kind     string
	Severity Severity

	// Evaluate returns a firing per affected subject. Returning the
	// same subject twice within a cycle still yields a single alert.
	Evaluate func(Input) []Firing
}
