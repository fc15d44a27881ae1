package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/cache"
	"github.com/credapprove/credit-service/internal/clock"
	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/repository"
	"github.com/credapprove/credit-service/internal/scoring"
)

const scoreCacheTTL = 24 * time.Hour

// Notifier sends customer-facing emails. Implementations must be safe
// to call concurrently.
type Notifier interface {
	LoanApproved(to, name string, amount, installment, rate decimal.Decimal, endDate time.Time) error
	PaymentReminder(to, name string, dueDate time.Time, amount decimal.Decimal) error
}

// Service handles business logic around registration, eligibility
// checks and loan creation. The cache and notifier are optional.
type Service struct {
	store    repository.Store
	cache    cache.ScoreCache
	clock    clock.Clock
	notifier Notifier
	log      *logrus.Logger
}

// New initializes a new service
func New(store repository.Store, scoreCache cache.ScoreCache, clk clock.Clock, notifier Notifier, log *logrus.Logger) *Service {
	return &Service{store: store, cache: scoreCache, clock: clk, notifier: notifier, log: log}
}

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	Email         string
	MonthlyIncome decimal.Decimal
}

var lakh = decimal.NewFromInt(100_000)

// approvedLimitFor derives the credit limit fixed at registration:
// 36 months of income, rounded to the nearest lakh.
func approvedLimitFor(monthlyIncome decimal.Decimal) decimal.Decimal {
	return monthlyIncome.Mul(decimal.NewFromInt(36)).Div(lakh).Round(0).Mul(lakh)
}

// RegisterCustomer creates a customer with a derived approved limit.
// The limit is set once here and never mutated by the decision engine.
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterInput) (*models.Customer, error) {
	if !in.MonthlyIncome.IsPositive() {
		return nil, fmt.Errorf("monthly income must be positive: %w", models.ErrInvalidInput)
	}
	customer := &models.Customer{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Age:           in.Age,
		PhoneNumber:   in.PhoneNumber,
		Email:         in.Email,
		MonthlySalary: in.MonthlyIncome,
		ApprovedLimit: approvedLimitFor(in.MonthlyIncome),
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	s.log.Infof("Customer registered: %d (%s), approved limit %s", customer.ID, customer.FullName(), customer.ApprovedLimit)
	return customer, nil
}

// EligibilityResult is the outcome of a non-mutating eligibility check.
type EligibilityResult struct {
	CustomerID            int64
	Approved              bool
	InterestRate          decimal.Decimal
	CorrectedInterestRate decimal.Decimal
	TenureMonths          int
	MonthlyInstallment    decimal.Decimal
	Message               string
}

// CheckEligibility runs the decision engine against the customer's
// current loan snapshot. Never mutates state.
func (s *Service) CheckEligibility(ctx context.Context, customerID int64, amount, rate decimal.Decimal, tenureMonths int) (*EligibilityResult, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	loans, err := s.store.ListLoans(ctx, customerID)
	if err != nil {
		return nil, err
	}
	decision, err := scoring.Decide(customer, loans, amount, rate, tenureMonths, s.clock.Today())
	if err != nil {
		return nil, err
	}
	res := &EligibilityResult{
		CustomerID:            customerID,
		Approved:              decision.Approved,
		InterestRate:          decision.RequestedRate,
		CorrectedInterestRate: decision.CorrectedRate,
		TenureMonths:          tenureMonths,
		MonthlyInstallment:    decision.Installment,
	}
	if !decision.Approved {
		res.Message = decision.Message
	}
	return res, nil
}

// CreateLoanResult reports the outcome of a loan request.
type CreateLoanResult struct {
	LoanID             *int64
	CustomerID         int64
	Approved           bool
	Message            string
	MonthlyInstallment decimal.Decimal
}

// CreateLoan decides a loan request and persists the loan on approval.
// The decide-and-insert runs under a per-customer lock so concurrent
// requests cannot jointly breach the EMI ceiling.
func (s *Service) CreateLoan(ctx context.Context, customerID int64, amount, rate decimal.Decimal, tenureMonths int) (*CreateLoanResult, error) {
	asOf := s.clock.Today()
	var res *CreateLoanResult
	var approved *models.Loan
	var customer *models.Customer

	err := s.store.WithCustomerLock(ctx, customerID, func(st repository.Store) error {
		var err error
		customer, err = st.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		loans, err := st.ListLoans(ctx, customerID)
		if err != nil {
			return err
		}
		terms, decision, err := scoring.Originate(customer, loans, amount, rate, tenureMonths, asOf)
		if err != nil {
			return err
		}
		res = &CreateLoanResult{
			CustomerID:         customerID,
			Approved:           decision.Approved,
			Message:            decision.Message,
			MonthlyInstallment: decision.Installment,
		}
		if !decision.Approved {
			return nil
		}
		loan := terms.Loan()
		if err := st.CreateLoan(ctx, loan); err != nil {
			return err
		}
		res.LoanID = &loan.ID
		approved = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	if approved != nil {
		s.invalidateScore(ctx, customerID)
		s.log.Infof("Loan %d created for customer %d: %s at %s%% over %d months",
			approved.ID, customerID, approved.Amount, approved.AnnualRatePct, approved.TenureMonths)
		s.notifyApproval(customer, approved)
	}
	return res, nil
}

func (s *Service) notifyApproval(customer *models.Customer, loan *models.Loan) {
	if s.notifier == nil || customer.Email == "" {
		return
	}
	err := s.notifier.LoanApproved(customer.Email, customer.FullName(),
		loan.Amount, loan.MonthlyInstallment, loan.AnnualRatePct, loan.EndDate)
	if err != nil {
		// Notification failures never fail the loan.
		s.log.Errorf("Failed to send approval email for loan %d: %v", loan.ID, err)
	}
}

// ScoreReport is the diagnostic credit-score breakdown.
type ScoreReport struct {
	CustomerID   int64                  `json:"customer_id"`
	CustomerName string                 `json:"customer_name"`
	AsOf         string                 `json:"as_of"`
	Breakdown    scoring.ScoreBreakdown `json:"breakdown"`
}

// CreditScore computes the customer's score with its breakdown,
// serving from the cache when the cached report matches today's date.
func (s *Service) CreditScore(ctx context.Context, customerID int64) (*ScoreReport, error) {
	asOf := s.clock.Today()
	key := scoreKey(customerID)

	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached ScoreReport
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.AsOf == asOf.Format("2006-01-02") {
				return &cached, nil
			}
		}
	}

	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	loans, err := s.store.ListLoans(ctx, customerID)
	if err != nil {
		return nil, err
	}
	report := &ScoreReport{
		CustomerID:   customerID,
		CustomerName: customer.FullName(),
		AsOf:         asOf.Format("2006-01-02"),
		Breakdown:    scoring.Breakdown(customer, loans, asOf),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), scoreCacheTTL); err != nil {
				s.log.Debugf("Score cache write failed for customer %d: %v", customerID, err)
			}
		}
	}
	return report, nil
}

func (s *Service) invalidateScore(ctx context.Context, customerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, scoreKey(customerID)); err != nil {
		s.log.Debugf("Score cache invalidation failed for customer %d: %v", customerID, err)
	}
}

func scoreKey(customerID int64) string {
	return fmt.Sprintf("score:%d", customerID)
}

// EMICapacityReport details how much monthly installment headroom a
// customer has under the 50%-salary ceiling.
type EMICapacityReport struct {
	CustomerID      int64
	CustomerName    string
	MonthlySalary   decimal.Decimal
	Ceiling         decimal.Decimal
	CurrentEMIs     decimal.Decimal
	Headroom        decimal.Decimal
	CanAffordMore   bool
	ActiveLoanCount int
	ActiveLoans     []models.Loan
}

// EMICapacity reports the customer's active EMI load and headroom.
func (s *Service) EMICapacity(ctx context.Context, customerID int64) (*EMICapacityReport, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	loans, err := s.store.ListLoans(ctx, customerID)
	if err != nil {
		return nil, err
	}
	asOf := s.clock.Today()

	total := decimal.Zero
	var active []models.Loan
	for _, l := range loans {
		if l.ActiveAt(asOf) {
			total = total.Add(l.MonthlyInstallment)
			active = append(active, l)
		}
	}
	ceiling := customer.MonthlySalary.Div(decimal.NewFromInt(2))
	headroom := ceiling.Sub(total)
	return &EMICapacityReport{
		CustomerID:      customerID,
		CustomerName:    customer.FullName(),
		MonthlySalary:   customer.MonthlySalary,
		Ceiling:         ceiling,
		CurrentEMIs:     total,
		Headroom:        headroom,
		CanAffordMore:   headroom.IsPositive(),
		ActiveLoanCount: len(active),
		ActiveLoans:     active,
	}, nil
}

// LoanView is a loan joined with a summary of its customer.
type LoanView struct {
	Loan     models.Loan
	Customer models.Customer
}

// ViewLoan retrieves one loan together with its customer.
func (s *Service) ViewLoan(ctx context.Context, loanID int64) (*LoanView, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetCustomer(ctx, loan.CustomerID)
	if err != nil {
		return nil, err
	}
	return &LoanView{Loan: *loan, Customer: *customer}, nil
}

// ViewLoans retrieves every loan of a customer.
func (s *Service) ViewLoans(ctx context.Context, customerID int64) ([]models.Loan, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.ListLoans(ctx, customerID)
}

// SystemInfo reports which clock the engine is running on.
type SystemInfo struct {
	Mode        string `json:"system_mode"`
	CurrentDate string `json:"current_system_date"`
}

// Info returns the clock mode and the effective system date.
func (s *Service) Info() SystemInfo {
	mode := "PRODUCTION"
	if clock.IsFixed(s.clock) {
		mode = "DEMO"
	}
	return SystemInfo{
		Mode:        mode,
		CurrentDate: s.clock.Today().Format("2006-01-02"),
	}
}
