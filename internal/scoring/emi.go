// Package scoring is the credit decision engine: EMI math, the
// 0-100 credit score, eligibility decisions and loan origination.
// Every function is pure; callers pass the loan snapshot and the
// as-of date explicitly.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/credapprove/credit-service/internal/models"
)

var one = decimal.NewFromInt(1)

// Installment computes the equated monthly installment for an
// amortizing loan: P*r*(1+r)^n / ((1+r)^n - 1) with r the monthly
// rate. A zero annual rate degenerates to straight division. All
// arithmetic stays in decimals; callers round at the presentation
// boundary.
func Installment(principal, annualRatePct decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if tenureMonths <= 0 {
		return decimal.Zero, fmt.Errorf("tenure must be at least 1 month, got %d: %w", tenureMonths, models.ErrInvalidInput)
	}
	if !principal.IsPositive() {
		return decimal.Zero, fmt.Errorf("principal must be positive, got %s: %w", principal, models.ErrInvalidInput)
	}
	if annualRatePct.IsNegative() {
		return decimal.Zero, fmt.Errorf("interest rate must not be negative, got %s: %w", annualRatePct, models.ErrInvalidInput)
	}

	months := decimal.NewFromInt(int64(tenureMonths))
	if annualRatePct.IsZero() {
		return principal.Div(months), nil
	}

	monthlyRate := annualRatePct.Div(decimal.NewFromInt(1200))
	growth := one.Add(monthlyRate).Pow(months)
	return principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(one)), nil
}
