package customer

import (
	"loyalty-tracker/internal/pkg/apperrors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

const maxTotalCents = math.MaxInt64

// DollarsToCents converts a dollar amount to whole cents. The float's
// shortest decimal form is rounded half away from zero, so 10.005 becomes
// 1001. Negative amounts contribute nothing.
func DollarsToCents(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, apperrors.NewValidationError("amount", "Amount must be a finite number")
	}
	cents := decimal.NewFromFloat(amount).Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, apperrors.NewValidationError("amount", "Amount is too large")
	}
	if cents.IsNegative() {
		return 0, nil
	}
	return cents.IntPart(), nil
}

// ProgressPercent is the share of the reward goal already spent, rounded and
// clamped to [0, 100].
func ProgressPercent(totalSpentCents int64, goalDollars float64) int {
	pct := decimal.NewFromInt(totalSpentCents).Mul(hundred).Div(goalCents(goalDollars)).Round(0).IntPart()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

func GoalReached(totalSpentCents int64, goalDollars float64) bool {
	return decimal.NewFromInt(totalSpentCents).GreaterThanOrEqual(goalCents(goalDollars))
}

// goalCents never returns less than one cent so it is always a safe divisor.
func goalCents(goalDollars float64) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if math.IsNaN(goalDollars) || math.IsInf(goalDollars, 0) {
		return one
	}
	cents := decimal.NewFromFloat(goalDollars).Mul(hundred).Round(0)
	if cents.LessThan(one) {
		return one
	}
	return cents
}

// FormatCurrency renders cents as US dollars, e.g. $12.34.
func FormatCurrency(totalSpentCents int64) string {
	return "$" + decimal.New(totalSpentCents, -2).StringFixed(2)
}
