package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/cache"
	"github.com/credapprove/credit-service/internal/clock"
	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/repository"
)

var refDate = time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

type mockNotifier struct {
	approvals []string
	reminders []string
}

func (m *mockNotifier) LoanApproved(to, _ string, _, _, _ decimal.Decimal, _ time.Time) error {
	m.approvals = append(m.approvals, to)
	return nil
}

func (m *mockNotifier) PaymentReminder(to, _ string, _ time.Time, _ decimal.Decimal) error {
	m.reminders = append(m.reminders, to)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService() (*Service, *repository.Memory, *cache.MockCache, *mockNotifier) {
	store := repository.NewMemory()
	scoreCache := cache.NewMockCache()
	notifier := &mockNotifier{}
	svc := New(store, scoreCache, clock.Fixed(refDate), notifier, quietLogger())
	return svc, store, scoreCache, notifier
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func register(t *testing.T, svc *Service, income string, email string) *models.Customer {
	t.Helper()
	c, err := svc.RegisterCustomer(context.Background(), RegisterInput{
		FirstName:     "Ravi",
		LastName:      "Iyer",
		Age:           29,
		PhoneNumber:   "9812345678",
		Email:         email,
		MonthlyIncome: dec(income),
	})
	if err != nil {
		t.Fatalf("RegisterCustomer: %v", err)
	}
	return c
}

func TestApprovedLimitRoundsToNearestLakh(t *testing.T) {
	cases := []struct {
		income string
		want   string
	}{
		{"50000", "1800000"},
		{"123456", "4400000"},   // 4444416 rounds down
		{"125000", "4500000"},   // 4500000 exact
		{"99000", "3600000"},    // 3564000 rounds up
		{"1000", "0"},           // 36000 rounds to zero
	}
	for _, tc := range cases {
		if got := approvedLimitFor(dec(tc.income)); !got.Equal(dec(tc.want)) {
			t.Errorf("approvedLimitFor(%s) = %s, want %s", tc.income, got, tc.want)
		}
	}
}

func TestRegisterCustomerSetsLimitOnce(t *testing.T) {
	svc, store, _, _ := newTestService()
	c := register(t, svc, "50000", "")
	if !c.ApprovedLimit.Equal(dec("1800000")) {
		t.Errorf("approved limit = %s, want 1800000", c.ApprovedLimit)
	}
	stored, err := store.GetCustomer(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if !stored.ApprovedLimit.Equal(c.ApprovedLimit) {
		t.Errorf("stored limit = %s, want %s", stored.ApprovedLimit, c.ApprovedLimit)
	}
}

func TestRegisterCustomerRejectsNonPositiveIncome(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.RegisterCustomer(context.Background(), RegisterInput{
		FirstName: "A", LastName: "B", Age: 30, PhoneNumber: "1", MonthlyIncome: decimal.Zero,
	})
	if err == nil {
		t.Fatal("expected error for zero income")
	}
}

func TestCheckEligibilityUnknownCustomer(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.CheckEligibility(context.Background(), 42, dec("100000"), dec("10"), 12)
	if err == nil || !strings.Contains(err.Error(), "customer not found") {
		t.Errorf("expected customer not found, got %v", err)
	}
}

func TestCreateLoanRejectedWithoutHistory(t *testing.T) {
	// A fresh customer has no credit history, scores zero and is
	// rejected, but the computed EMI is still reported.
	svc, store, _, notifier := newTestService()
	c := register(t, svc, "50000", "ravi@example.com")

	res, err := svc.CreateLoan(context.Background(), c.ID, dec("100000"), dec("10"), 12)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if res.Approved {
		t.Fatal("expected rejection")
	}
	if res.LoanID != nil {
		t.Errorf("rejected loan has id %d", *res.LoanID)
	}
	if !strings.Contains(res.Message, "Credit score too low") {
		t.Errorf("unexpected message %q", res.Message)
	}
	if got := res.MonthlyInstallment.StringFixed(2); got != "8791.59" {
		t.Errorf("installment = %s, want 8791.59", got)
	}
	loans, _ := store.ListLoans(context.Background(), c.ID)
	if len(loans) != 0 {
		t.Errorf("store holds %d loans after rejection", len(loans))
	}
	if len(notifier.approvals) != 0 {
		t.Error("no email expected for a rejected loan")
	}
}

func seedGoodHistory(t *testing.T, store *repository.Memory, customerID int64) {
	t.Helper()
	err := store.CreateLoan(context.Background(), &models.Loan{
		CustomerID:         customerID,
		Amount:             dec("200000"),
		TenureMonths:       10,
		AnnualRatePct:      dec("11"),
		MonthlyInstallment: dec("21000"),
		EMIsPaidOnTime:     10,
		ApprovalDate:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed loan: %v", err)
	}
}

func TestCreateLoanApprovalPersistsAndNotifies(t *testing.T) {
	svc, store, scoreCache, notifier := newTestService()
	c := register(t, svc, "80000", "ravi@example.com")
	seedGoodHistory(t, store, c.ID)

	// Warm the score cache so approval provably invalidates it.
	if _, err := svc.CreditScore(context.Background(), c.ID); err != nil {
		t.Fatalf("CreditScore: %v", err)
	}

	res, err := svc.CreateLoan(context.Background(), c.ID, dec("300000"), dec("9.5"), 24)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if !res.Approved {
		t.Fatalf("expected approval, got %q", res.Message)
	}
	if res.LoanID == nil {
		t.Fatal("approved loan has no id")
	}

	loan, err := store.GetLoan(context.Background(), *res.LoanID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if loan.EMIsPaidOnTime != 0 {
		t.Errorf("new loan has %d paid EMIs", loan.EMIsPaidOnTime)
	}
	if !loan.ApprovalDate.Equal(refDate) {
		t.Errorf("approval date = %v, want %v", loan.ApprovalDate, refDate)
	}
	if want := time.Date(2028, 2, 9, 0, 0, 0, 0, time.UTC); !loan.EndDate.Equal(want) {
		t.Errorf("end date = %v, want %v", loan.EndDate, want)
	}
	if !loan.AnnualRatePct.Equal(dec("9.5")) {
		t.Errorf("rate = %s, want the requested 9.5 for a high score", loan.AnnualRatePct)
	}

	if len(notifier.approvals) != 1 || notifier.approvals[0] != "ravi@example.com" {
		t.Errorf("approval emails = %v, want one to ravi@example.com", notifier.approvals)
	}
	if len(scoreCache.Deletes) == 0 {
		t.Error("expected the score cache entry to be invalidated")
	}
}

func TestCheckEligibilityIsIdempotentAndReadOnly(t *testing.T) {
	svc, store, _, _ := newTestService()
	c := register(t, svc, "80000", "")
	seedGoodHistory(t, store, c.ID)

	first, err := svc.CheckEligibility(context.Background(), c.ID, dec("300000"), dec("9.5"), 24)
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	second, err := svc.CheckEligibility(context.Background(), c.ID, dec("300000"), dec("9.5"), 24)
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if first.Approved != second.Approved ||
		!first.MonthlyInstallment.Equal(second.MonthlyInstallment) ||
		!first.CorrectedInterestRate.Equal(second.CorrectedInterestRate) {
		t.Errorf("eligibility not idempotent: %+v vs %+v", first, second)
	}
	loans, _ := store.ListLoans(context.Background(), c.ID)
	if len(loans) != 1 {
		t.Errorf("eligibility check mutated the loan set: %d loans", len(loans))
	}
}

func TestCreditScoreUsesCache(t *testing.T) {
	svc, store, scoreCache, _ := newTestService()
	c := register(t, svc, "80000", "")
	seedGoodHistory(t, store, c.ID)

	first, err := svc.CreditScore(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("CreditScore: %v", err)
	}
	if first.Breakdown.Score != 100 {
		t.Errorf("score = %d, want 100", first.Breakdown.Score)
	}
	if len(scoreCache.Data) != 1 {
		t.Fatalf("expected one cached report, have %d", len(scoreCache.Data))
	}

	second, err := svc.CreditScore(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("CreditScore: %v", err)
	}
	if second.Breakdown.Score != first.Breakdown.Score || second.AsOf != first.AsOf {
		t.Errorf("cached report differs: %+v vs %+v", second, first)
	}
}

func TestEMICapacityHeadroom(t *testing.T) {
	svc, store, _, _ := newTestService()
	c := register(t, svc, "80000", "")
	err := store.CreateLoan(context.Background(), &models.Loan{
		CustomerID:         c.ID,
		Amount:             dec("240000"),
		TenureMonths:       12,
		AnnualRatePct:      dec("10"),
		MonthlyInstallment: dec("21000"),
		EMIsPaidOnTime:     3,
		ApprovalDate:       time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	report, err := svc.EMICapacity(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("EMICapacity: %v", err)
	}
	if !report.Ceiling.Equal(dec("40000")) {
		t.Errorf("ceiling = %s, want 40000", report.Ceiling)
	}
	if !report.CurrentEMIs.Equal(dec("21000")) {
		t.Errorf("current EMIs = %s, want 21000", report.CurrentEMIs)
	}
	if !report.Headroom.Equal(dec("19000")) {
		t.Errorf("headroom = %s, want 19000", report.Headroom)
	}
	if report.ActiveLoanCount != 1 {
		t.Errorf("active loans = %d, want 1", report.ActiveLoanCount)
	}
}

func TestInfoReportsDemoMode(t *testing.T) {
	svc, _, _, _ := newTestService()
	info := svc.Info()
	if info.Mode != "DEMO" {
		t.Errorf("mode = %s, want DEMO under a fixed clock", info.Mode)
	}
	if info.CurrentDate != "2026-02-09" {
		t.Errorf("date = %s, want 2026-02-09", info.CurrentDate)
	}
}
