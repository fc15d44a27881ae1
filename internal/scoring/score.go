package scoring

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/credapprove/credit-service/internal/dates"
	"github.com/credapprove/credit-service/internal/models"
)

// ScoreBreakdown carries the credit score together with the figures
// it was derived from, for the diagnostic endpoint.
type ScoreBreakdown struct {
	Score               int             `json:"score"`
	CurrentDebt         decimal.Decimal `json:"current_debt"`
	UtilizationRatio    float64         `json:"utilization_ratio"`
	TotalLoans          int             `json:"total_loans"`
	ActiveLoans         int             `json:"active_loans"`
	CompletedLoans      int             `json:"completed_loans"`
	OverLimit           bool            `json:"over_limit"`
	PaymentHistoryPts   float64         `json:"payment_history_points"`
	LoanCountPts        float64         `json:"loan_count_points"`
	UtilizationPts      float64         `json:"utilization_points"`
	ActivityPts         float64         `json:"activity_points"`
	ActiveInCurrentYear int             `json:"active_in_current_year"`
}

// band maps an inclusive lower bound to the points it earns. Bands are
// listed highest bound first; the first match wins, with a fall-through
// of zero points.
type band struct {
	min    float64
	points float64
}

var (
	loanCountBands = []band{
		{min: 7, points: 5},
		{min: 4, points: 10},
		{min: 1, points: 15},
	}
	// The lowest band is unbounded below: installments include
	// interest, so a nearly repaid active loan drives the remaining
	// balance and the ratio negative.
	utilizationBands = []band{
		{min: 0.8, points: 5},
		{min: 0.5, points: 10},
		{min: 0.3, points: 15},
		{min: math.Inf(-1), points: 20},
	}
	activityBands = []band{
		{min: 3, points: 5},
		{min: 1, points: 10},
		{min: 0, points: 15},
	}
)

func bandPoints(bands []band, v float64) float64 {
	for _, b := range bands {
		if v >= b.min {
			return b.points
		}
	}
	return 0
}

// Score computes the customer's credit score in [0,100] as of the
// given date. See Breakdown for the component rules.
func Score(customer *models.Customer, loans []models.Loan, asOf time.Time) int {
	return Breakdown(customer, loans, asOf).Score
}

// Breakdown computes the credit score and its components. Customers
// with no credit history score zero, as does anyone whose outstanding
// debt on active loans exceeds their approved limit; the override
// short-circuits every other component.
func Breakdown(customer *models.Customer, loans []models.Loan, asOf time.Time) ScoreBreakdown {
	asOf = dates.Midnight(asOf)
	bd := ScoreBreakdown{TotalLoans: len(loans), CurrentDebt: decimal.Zero}
	if len(loans) == 0 {
		return bd
	}

	for i := range loans {
		if loans[i].ActiveAt(asOf) {
			bd.ActiveLoans++
			bd.CurrentDebt = bd.CurrentDebt.Add(loans[i].RemainingBalance())
		} else {
			bd.CompletedLoans++
		}
	}
	if customer.ApprovedLimit.IsPositive() {
		bd.UtilizationRatio = bd.CurrentDebt.Div(customer.ApprovedLimit).InexactFloat64()
	}
	if bd.CurrentDebt.GreaterThan(customer.ApprovedLimit) {
		bd.OverLimit = true
		return bd
	}

	// Payment history, 0-50: average per-loan repayment ratio. A
	// completed loan is judged against its full tenure; an active loan
	// against the installments that have fallen due so far, a loan too
	// young to owe anything counting as perfect.
	var ratioSum float64
	for i := range loans {
		ratioSum += paymentRatio(&loans[i], asOf)
	}
	bd.PaymentHistoryPts = ratioSum / float64(len(loans)) * 50

	bd.LoanCountPts = bandPoints(loanCountBands, float64(len(loans)))
	bd.UtilizationPts = bandPoints(utilizationBands, bd.UtilizationRatio)

	for i := range loans {
		if loans[i].ApprovalDate.Year() <= asOf.Year() && loans[i].EndDate.Year() >= asOf.Year() {
			bd.ActiveInCurrentYear++
		}
	}
	bd.ActivityPts = bandPoints(activityBands, float64(bd.ActiveInCurrentYear))

	bd.Score = int(math.Round(bd.PaymentHistoryPts + bd.LoanCountPts + bd.UtilizationPts + bd.ActivityPts))
	return bd
}

func paymentRatio(l *models.Loan, asOf time.Time) float64 {
	if !l.ActiveAt(asOf) {
		if l.TenureMonths <= 0 {
			return 0
		}
		return float64(l.EMIsPaidOnTime) / float64(l.TenureMonths)
	}
	expected := dates.MonthsBetween(l.ApprovalDate, asOf)
	if expected == 0 {
		return 1.0
	}
	return math.Min(float64(l.EMIsPaidOnTime)/float64(expected), 1.0)
}
