// Package optimize discovers interest-rate arbitrage across accounts
// and computes avalanche payment allocations.
//
// Savings use the simple-interest convention: a transferred balance
// saves transfer * (r_src - r_dst) / 12 per month, with no compounding
// and no minimum-payment offset.
package optimize

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/metrics"
	"github.com/debtwise/debtwise/internal/projection"
)

// Opportunity is one balance transfer that reduces total interest cost.
// Opportunities are ephemeral output, never persisted as ledger state.
type Opportunity struct {
	From           string
	To             string
	Transfer       decimal.Decimal
	MonthlySavings decimal.Decimal
	AnnualSavings  decimal.Decimal

	// Risk is a weighted score in [0,1]; higher means riskier.
	Risk float64
}

// FactorInput carries everything a risk factor may inspect.
type FactorInput struct {
	Source    ledger.Account
	Dest      ledger.Account
	SourceBal decimal.Decimal
	DestBal   decimal.Decimal
	Transfer  decimal.Decimal
	Now       time.Time
}

// Factor is one named, weighted risk component. Score must return a
// value normalized to [0,1]. Factors are data registered into the
// engine; adding one never touches engine internals.
type Factor struct {
	Name   string
	Weight float64
	Score  func(FactorInput) float64
}

// Normalization constants for the default factors.
var (
	// maxRateSpread is the spread treated as maximum rate-differential risk.
	maxRateSpread = 0.30
	// maxExposure is the transfer size treated as maximum balance exposure.
	maxExposure = decimal.NewFromInt(10000)
	// promoWindowDays is the promotional runway treated as fully safe.
	promoWindowDays = 365.0
)

// DefaultFactors returns the standard risk weighting:
// rate differential 0.4, balance exposure 0.2, destination capacity
// pressure 0.3, promotional runway 0.1.
func DefaultFactors() []Factor {
	return []Factor{
		{
			Name:   "rate_differential",
			Weight: 0.4,
			Score: func(in FactorInput) float64 {
				return clamp01((in.Source.APR - in.Dest.APR) / maxRateSpread)
			},
		},
		{
			Name:   "balance_exposure",
			Weight: 0.2,
			Score: func(in FactorInput) float64 {
				ratio, _ := in.Transfer.Div(maxExposure).Float64()
				return clamp01(ratio)
			},
		},
		{
			Name:   "capacity_pressure",
			Weight: 0.3,
			Score: func(in FactorInput) float64 {
				if in.Dest.CreditLimit == nil || in.Dest.CreditLimit.Sign() <= 0 {
					return 0
				}
				after := in.DestBal.Add(in.Transfer)
				ratio, _ := after.Div(*in.Dest.CreditLimit).Float64()
				return clamp01(ratio)
			},
		},
		{
			Name:   "promo_runway",
			Weight: 0.1,
			Score: func(in FactorInput) float64 {
				days := in.Dest.PromoDaysRemaining(in.Now)
				if days < 0 {
					return 0
				}
				if days > promoWindowDays {
					days = promoWindowDays
				}
				return clamp01(1 - days/promoWindowDays)
			},
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Engine discovers arbitrage opportunities over a snapshot.
type Engine struct {
	factors          []Factor
	minAnnualSavings decimal.Decimal
	now              func() time.Time
	logger           *slog.Logger
	metrics          *metrics.Collector
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFactors replaces the risk factor table.
func WithFactors(factors []Factor) EngineOption {
	return func(e *Engine) { e.factors = factors }
}

// WithMinAnnualSavings sets the significance threshold (default 100/yr).
func WithMinAnnualSavings(min decimal.Decimal) EngineOption {
	return func(e *Engine) { e.minAnnualSavings = min }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an optimization engine with the default factor
// table and a 100/yr significance threshold.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		factors:          DefaultFactors(),
		minAnnualSavings: decimal.NewFromInt(100),
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Opportunities evaluates every (source, destination) pair where the
// source rate exceeds the destination rate and destination capacity is
// available. Results are sorted by annual savings descending, ties by
// ascending risk.
func (e *Engine) Opportunities(snap *projection.Snapshot, accounts []ledger.Account) []Opportunity {
	now := e.now()
	twelve := decimal.NewFromInt(12)

	var out []Opportunity
	for _, src := range accounts {
		srcBal := snap.Balance(src.ID)
		if srcBal.Sign() <= 0 {
			continue
		}
		for _, dst := range accounts {
			if dst.ID == src.ID || src.APR <= dst.APR {
				continue
			}
			dstBal := snap.Balance(dst.ID)
			capacity := dst.Available(dstBal)
			if capacity.Sign() <= 0 {
				continue
			}

			transfer := decimal.Min(srcBal, capacity)
			spread := decimal.NewFromFloat(src.APR - dst.APR)
			annual := transfer.Mul(spread)
			if annual.LessThan(e.minAnnualSavings) {
				continue
			}
			monthly := annual.Div(twelve)

			out = append(out, Opportunity{
				From:           src.ID,
				To:             dst.ID,
				Transfer:       transfer,
				MonthlySavings: monthly,
				AnnualSavings:  annual,
				Risk: e.risk(FactorInput{
					Source:    src,
					Dest:      dst,
					SourceBal: srcBal,
					DestBal:   dstBal,
					Transfer:  transfer,
					Now:       now,
				}),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].AnnualSavings.Cmp(out[j].AnnualSavings); c != 0 {
			return c > 0
		}
		return out[i].Risk < out[j].Risk
	})

	e.metrics.OpportunitiesFound(len(out))
	e.logger.Debug("arbitrage discovery completed",
		slog.Int("opportunities", len(out)),
		slog.Int("accounts", len(accounts)))
	return out
}

// risk computes the weighted factor sum, clamped to [0,1].
func (e *Engine) risk(in FactorInput) float64 {
	var total float64
	for _, f := range e.factors {
		total += f.Weight * clamp01(f.Score(in))
	}
	return clamp01(total)
}
