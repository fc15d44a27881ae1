package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanTerms is the materialized outcome of an approved loan request,
// ready for the persistence layer. It is never stored directly.
type LoanTerms struct {
	CustomerID         int64
	Amount             decimal.Decimal
	TenureMonths       int
	AnnualRatePct      decimal.Decimal
	MonthlyInstallment decimal.Decimal
	ApprovalDate       time.Time
	EndDate            time.Time
}

// Loan converts the terms into a persistable loan with zero paid EMIs.
func (t *LoanTerms) Loan() *Loan {
	return &Loan{
		CustomerID:         t.CustomerID,
		Amount:             t.Amount,
		TenureMonths:       t.TenureMonths,
		AnnualRatePct:      t.AnnualRatePct,
		MonthlyInstallment: t.MonthlyInstallment,
		EMIsPaidOnTime:     0,
		ApprovalDate:       t.ApprovalDate,
		EndDate:            t.EndDate,
	}
}
