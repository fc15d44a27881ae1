package scoring

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/credapprove/credit-service/internal/dates"
	"github.com/credapprove/credit-service/internal/models"
)

// Rejection and approval messages returned to callers.
const (
	MsgApproved         = "Loan approved"
	MsgEMICeiling       = "Sum of current EMIs exceeds 50% of monthly salary"
	msgLowScoreFmt      = "Credit score too low (score: %d)"
	salaryCeilingFactor = 2 // EMIs may consume at most salary / 2
)

// rateBand maps a minimum (exclusive) score to the lowest rate the
// bank will lend at for that score. A zero floor keeps the requested
// rate untouched. Scores at or below the last band's threshold are
// rejected outright.
type rateBand struct {
	above int
	floor decimal.Decimal
}

var rateBands = []rateBand{
	{above: 50, floor: decimal.Zero},
	{above: 30, floor: decimal.NewFromInt(12)},
	{above: 10, floor: decimal.NewFromInt(16)},
}

// Decision is the outcome of an eligibility check. Rejections are
// ordinary values: Approved is false and Message names the reason.
type Decision struct {
	Approved      bool
	Score         int
	ScoreKnown    bool
	RequestedRate decimal.Decimal
	CorrectedRate decimal.Decimal
	Installment   decimal.Decimal
	Message       string
}

// Decide runs the eligibility pipeline for a new loan request.
//
// The affordability ceiling is checked first, against the EMI at the
// requested rate, and short-circuits before any score is computed: a
// customer whose active EMIs plus the new one would exceed half their
// salary is rejected no matter how good their history is. Note the
// ceiling deliberately uses the requested-rate EMI even though a score
// band may later raise the rate; the corrected EMI is only reported,
// never re-checked.
func Decide(customer *models.Customer, loans []models.Loan, amount, annualRatePct decimal.Decimal, tenureMonths int, asOf time.Time) (Decision, error) {
	asOf = dates.Midnight(asOf)
	newEMI, err := Installment(amount, annualRatePct, tenureMonths)
	if err != nil {
		return Decision{}, err
	}

	activeEMIs := decimal.Zero
	for i := range loans {
		if loans[i].ActiveAt(asOf) {
			activeEMIs = activeEMIs.Add(loans[i].MonthlyInstallment)
		}
	}
	ceiling := customer.MonthlySalary.Div(decimal.NewFromInt(salaryCeilingFactor))
	if activeEMIs.Add(newEMI).GreaterThan(ceiling) {
		return Decision{
			RequestedRate: annualRatePct,
			CorrectedRate: annualRatePct,
			Installment:   newEMI,
			Message:       MsgEMICeiling,
		}, nil
	}

	score := Score(customer, loans, asOf)
	corrected, ok := correctedRate(score, annualRatePct)
	if !ok {
		return Decision{
			Score:         score,
			ScoreKnown:    true,
			RequestedRate: annualRatePct,
			CorrectedRate: annualRatePct,
			Installment:   newEMI,
			Message:       fmt.Sprintf(msgLowScoreFmt, score),
		}, nil
	}

	finalEMI, err := Installment(amount, corrected, tenureMonths)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Approved:      true,
		Score:         score,
		ScoreKnown:    true,
		RequestedRate: annualRatePct,
		CorrectedRate: corrected,
		Installment:   finalEMI,
		Message:       MsgApproved,
	}, nil
}

// correctedRate applies the score bands: the first band the score
// clears decides the minimum lending rate. Returns false when the
// score clears no band.
func correctedRate(score int, requested decimal.Decimal) (decimal.Decimal, bool) {
	for _, b := range rateBands {
		if score > b.above {
			if requested.LessThan(b.floor) {
				return b.floor, true
			}
			return requested, true
		}
	}
	return requested, false
}
