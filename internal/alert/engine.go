package alert

import (
	"log/slog"
	"sort"

	"github.com/debtwise/debtwise/internal/metrics"
)

// Engine runs a registered rule set over evaluation inputs.
type Engine struct {
	rules   []Rule
	logger  *slog.Logger
	metrics *metrics.Collector
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine with the given rule set.
func NewEngine(rules []Rule, opts ...EngineOption) *Engine {
	e := &Engine{rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register appends a rule to the set.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Evaluate runs every rule against the input once and returns the
// de-duplicated alerts for the cycle, ordered by severity descending,
// then kind, then subject.
func (e *Engine) Evaluate(in Input) []Alert {
	type key struct {
		kind    string
		subject string
	}
	seen := make(map[key]struct{})

	var out []Alert
	for _, rule := range e.rules {
		for _, firing := range rule.Evaluate(in) {
			k := key{kind: rule.Kind, subject: firing.Subject}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}

			out = append(out, Alert{
				Kind:     rule.Kind,
				Severity: rule.Severity,
				Subject:  firing.Subject,
				Message:  firing.Message,
				At:       in.Now,
			})
			e.metrics.AlertRaised(rule.Severity.String())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Subject < out[j].Subject
	})

	if len(out) > 0 {
		e.logger.Debug("alert cycle completed",
			slog.Int("alerts", len(out)),
			slog.Int("rules", len(e.rules)))
	}
	return out
}
