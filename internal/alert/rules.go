package alert

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/debtwise/debtwise/internal/phase"
)

// Thresholds tunes the default rule set. Loadable from YAML so
// operators can adjust trigger points without a rebuild.
type Thresholds struct {
	// HighUtilization fires a warning above this revolving utilization.
	HighUtilization float64 `yaml:"high_utilization"`

	// PromoExpiryDays fires a warning when a promotional rate on an
	// account carrying a balance ends within this many days.
	PromoExpiryDays float64 `yaml:"promo_expiry_days"`

	// NotableAnnualSavings fires an info alert for opportunities at or
	// above this annual savings.
	NotableAnnualSavings float64 `yaml:"notable_annual_savings"`
}

// DefaultThresholds returns the standard trigger points.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighUtilization:      0.75,
		PromoExpiryDays:      30,
		NotableAnnualSavings: 500,
	}
}

// LoadThresholds reads thresholds from a YAML file, filling unset
// fields with defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse thresholds: %w", err)
	}
	return th, nil
}

// SubjectPortfolio is the subject for alerts about the whole position.
const SubjectPortfolio = "portfolio"

// DefaultRules builds the standard rule set for the given thresholds.
func DefaultRules(th Thresholds) []Rule {
	highUtil := decimal.NewFromFloat(th.HighUtilization)
	notable := decimal.NewFromFloat(th.NotableAnnualSavings)

	return []Rule{
		{
			Kind:     "over_limit",
			Severity: SeverityCritical,
			Evaluate: func(in Input) []Firing {
				var fs []Firing
				for _, acct := range in.Accounts {
					if acct.CreditLimit == nil {
						continue
					}
					bal := in.Snapshot.Balance(acct.ID)
					if bal.GreaterThan(*acct.CreditLimit) {
						fs = append(fs, Firing{
							Subject: acct.ID,
							Message: fmt.Sprintf("%s is over its credit limit: balance %s exceeds %s",
								acct.Name, bal.StringFixed(2), acct.CreditLimit.StringFixed(2)),
						})
					}
				}
				return fs
			},
		},
		{
			Kind:     "crisis_phase",
			Severity: SeverityCritical,
			Evaluate: func(in Input) []Firing {
				if in.Phase != phase.Crisis {
					return nil
				}
				return []Firing{{
					Subject: SubjectPortfolio,
					Message: "financial state classified as CRISIS: prioritize minimums and highest-rate balances",
				}}
			},
		},
		{
			Kind:     "high_utilization",
			Severity: SeverityWarning,
			Evaluate: func(in Input) []Firing {
				var fs []Firing
				for _, acct := range in.Accounts {
					if acct.CreditLimit == nil || acct.CreditLimit.Sign() <= 0 {
						continue
					}
					bal := in.Snapshot.Balance(acct.ID)
					util := bal.Div(*acct.CreditLimit)
					if util.GreaterThan(highUtil) && !bal.GreaterThan(*acct.CreditLimit) {
						fs = append(fs, Firing{
							Subject: acct.ID,
							Message: fmt.Sprintf("%s utilization at %s%% of its limit",
								acct.Name, util.Mul(decimal.NewFromInt(100)).StringFixed(0)),
						})
					}
				}
				return fs
			},
		},
		{
			Kind:     "promo_expiring",
			Severity: SeverityWarning,
			Evaluate: func(in Input) []Firing {
				var fs []Firing
				for _, acct := range in.Accounts {
					days := acct.PromoDaysRemaining(in.Now)
					if days < 0 || days > th.PromoExpiryDays {
						continue
					}
					if in.Snapshot.Balance(acct.ID).Sign() <= 0 {
						continue
					}
					fs = append(fs, Firing{
						Subject: acct.ID,
						Message: fmt.Sprintf("promotional rate on %s ends in %.0f days with a balance outstanding",
							acct.Name, days),
					})
				}
				return fs
			},
		},
		{
			Kind:     "arbitrage_available",
			Severity: SeverityInfo,
			Evaluate: func(in Input) []Firing {
				var fs []Firing
				for _, opp := range in.Opportunities {
					if opp.AnnualSavings.LessThan(notable) {
						continue
					}
					fs = append(fs, Firing{
						Subject: opp.From + "->" + opp.To,
						Message: fmt.Sprintf("transferring %s from %s to %s saves %s/year",
							opp.Transfer.StringFixed(2), opp.From, opp.To, opp.AnnualSavings.StringFixed(2)),
					})
				}
				return fs
			},
		},
	}
}
