package money

import (
	"github.com/shopspring/decimal"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Monetary amounts (targets, contributions, bounty, matching) are carried as
// arbitrary-precision decimals end to end. Float arithmetic is never used for
// money.

// Displayed funding totals are truncated to 3 decimal places toward zero so a
// rounded total can never show an apparent over-funding.
const displayPlaces = 3

var (
	// ContributionMin and ContributionMax bound a single pledge.
	ContributionMin = decimal.RequireFromString("0.0001")
	ContributionMax = decimal.NewFromInt(1000000)
)

// Parse validates and parses a decimal amount string. Negative or unparseable
// input yields a validation error.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperrors.Validation("invalid amount: %s", s)
	}
	if d.IsNegative() {
		return decimal.Zero, apperrors.Validation("invalid amount: must not be negative")
	}
	return d, nil
}

// Quantize truncates an amount to the display precision, rounding toward zero.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(displayPlaces)
}

// Funded computes the effective funded amount of a proposal:
// contributed * (1 + matching) + bounty, clamped to the target and quantized.
func Funded(target, contributed, matching, bounty decimal.Decimal) decimal.Decimal {
	matched := contributed.Mul(decimal.NewFromInt(1).Add(matching))
	total := matched.Add(bounty)
	if total.GreaterThan(target) {
		total = target
	}
	return Quantize(total)
}

// ValidateContribution checks a pledge amount against the allowed range.
func ValidateContribution(d decimal.Decimal) error {
	if d.LessThan(ContributionMin) {
		return apperrors.Validation("contribution amount is below the minimum of %s", ContributionMin.String())
	}
	if d.GreaterThan(ContributionMax) {
		return apperrors.Validation("contribution amount exceeds the maximum of %s", ContributionMax.String())
	}
	return nil
}

// IsWholeNumber reports whether the amount has no fractional component.
// Proposal targets are denominated in whole units.
func IsWholeNumber(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}
