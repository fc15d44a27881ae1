package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan represents an originated loan belonging to a customer
type Loan struct {
	ID                 int64           `json:"id"`
	CustomerID         int64           `json:"customer_id"`
	Amount             decimal.Decimal `json:"loan_amount"`
	TenureMonths       int             `json:"tenure"`
	AnnualRatePct      decimal.Decimal `json:"interest_rate"`
	MonthlyInstallment decimal.Decimal `json:"monthly_payment"`
	EMIsPaidOnTime     int             `json:"emis_paid_on_time"`
	ApprovalDate       time.Time       `json:"date_of_approval"`
	EndDate            time.Time       `json:"end_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ActiveAt reports whether the loan is still running at the given date.
// A loan is active until its end date has passed.
func (l *Loan) ActiveAt(d time.Time) bool {
	return !l.EndDate.Before(d)
}

// RemainingBalance is the principal still owed, assuming every EMI paid
// on schedule reduced the balance by one installment. Source data may
// record more paid EMIs than the balance supports, so the result can be
// negative; callers sum it as-is.
func (l *Loan) RemainingBalance() decimal.Decimal {
	paid := decimal.NewFromInt(int64(l.EMIsPaidOnTime)).Mul(l.MonthlyInstallment)
	return l.Amount.Sub(paid)
}

// RepaymentsLeft is the number of installments still due.
func (l *Loan) RepaymentsLeft() int {
	return l.TenureMonths - l.EMIsPaidOnTime
}
