package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/credapprove/credit-service/internal/dates"
	"github.com/credapprove/credit-service/internal/models"
)

// Originate decides a loan request and, when approved, materializes
// the terms to persist: approval today, end date tenure months out,
// nothing paid yet, priced at the corrected rate. On rejection the
// terms are nil and the decision carries the reason plus the
// requested-rate EMI for transparency. Pure function; feeding it the
// same snapshot twice yields the same result.
func Originate(customer *models.Customer, loans []models.Loan, amount, annualRatePct decimal.Decimal, tenureMonths int, asOf time.Time) (*models.LoanTerms, Decision, error) {
	asOf = dates.Midnight(asOf)
	decision, err := Decide(customer, loans, amount, annualRatePct, tenureMonths, asOf)
	if err != nil || !decision.Approved {
		return nil, decision, err
	}
	terms := &models.LoanTerms{
		CustomerID:         customer.ID,
		Amount:             amount,
		TenureMonths:       tenureMonths,
		AnnualRatePct:      decision.CorrectedRate,
		MonthlyInstallment: decision.Installment,
		ApprovalDate:       asOf,
		EndDate:            dates.AddMonths(asOf, tenureMonths),
	}
	return terms, decision, nil
}
