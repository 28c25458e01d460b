// Package phase classifies the overall financial state from current
// inputs. Classification is a pure function: nothing is stored, and the
// same inputs always yield the same phase.
package phase

import "github.com/shopspring/decimal"

// Phase is the financial-state category used to select strategies.
type Phase string

const (
	Crisis   Phase = "CRISIS"
	Recovery Phase = "RECOVERY"
	Growth   Phase = "GROWTH"
)

// Crisis thresholds. Both boundaries belong to CRISIS.
var (
	crisisDTI         = decimal.NewFromFloat(2.0)
	crisisUtilization = decimal.NewFromFloat(0.8)
	recoveryDTI       = decimal.NewFromFloat(0.5)
)

// Classify maps total debt, annual income, and credit usage to a Phase.
//
// CRISIS when debt-to-income >= 2.0 or utilization >= 0.8, else
// RECOVERY when debt-to-income > 0.5, else GROWTH.
//
// Edge cases: zero or negative income with outstanding debt is CRISIS
// (the ratio is unbounded); zero credit capacity with usage is likewise
// CRISIS.
func Classify(totalDebt, annualIncome, creditUsed, creditAvailable decimal.Decimal) Phase {
	if annualIncome.Sign() <= 0 {
		if totalDebt.Sign() > 0 {
			return Crisis
		}
		return Growth
	}
	if creditAvailable.Sign() <= 0 && creditUsed.Sign() > 0 {
		return Crisis
	}

	dti := totalDebt.Div(annualIncome)
	if dti.GreaterThanOrEqual(crisisDTI) {
		return Crisis
	}
	if creditAvailable.Sign() > 0 {
		utilization := creditUsed.Div(creditAvailable)
		if utilization.GreaterThanOrEqual(crisisUtilization) {
			return Crisis
		}
	}
	if dti.GreaterThan(recoveryDTI) {
		return Recovery
	}
	return Growth
}
