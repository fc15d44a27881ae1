package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/cache"
	"github.com/credapprove/credit-service/internal/clock"
	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/repository"
	"github.com/credapprove/credit-service/internal/service"
)

var refDate = time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

type fixture struct {
	router *mux.Router
	store  *repository.Memory
	svc    *service.Service
}

func newFixture(t *testing.T, rates KeyRater) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := repository.NewMemory()
	svc := service.New(store, cache.NewMockCache(), clock.Fixed(refDate), nil, log)
	h := NewHandler(svc, rates, log)
	return &fixture{router: h.Router(), store: store, svc: svc}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func (f *fixture) registerCustomer(t *testing.T, income float64, email string) int64 {
	t.Helper()
	c, err := f.svc.RegisterCustomer(context.Background(), service.RegisterInput{
		FirstName:     "Asha",
		LastName:      "Verma",
		Age:           34,
		PhoneNumber:   "9876543210",
		Email:         email,
		MonthlyIncome: decimal.NewFromFloat(income),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return c.ID
}

func (f *fixture) seedCompletedLoan(t *testing.T, customerID int64) {
	t.Helper()
	err := f.store.CreateLoan(context.Background(), &models.Loan{
		CustomerID:         customerID,
		Amount:             decimal.NewFromInt(200000),
		TenureMonths:       10,
		AnnualRatePct:      decimal.NewFromInt(11),
		MonthlyInstallment: decimal.NewFromInt(21000),
		EMIsPaidOnTime:     10,
		ApprovalDate:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed loan: %v", err)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/register", map[string]any{
		"first_name":     "Asha",
		"last_name":      "Verma",
		"age":            34,
		"monthly_income": 50000,
		"phone_number":   "9876543210",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var resp struct {
		CustomerID    int64   `json:"customer_id"`
		Name          string  `json:"name"`
		ApprovedLimit float64 `json:"approved_limit"`
	}
	decodeBody(t, w, &resp)
	if resp.CustomerID == 0 {
		t.Error("missing customer_id")
	}
	if resp.Name != "Asha Verma" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.ApprovedLimit != 1800000 {
		t.Errorf("approved_limit = %v, want 1800000", resp.ApprovedLimit)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/register", map[string]any{
		"first_name": "Asha",
		// missing everything else
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckEligibilityUnknownCustomer(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/check-eligibility", map[string]any{
		"customer_id":   99,
		"loan_amount":   100000,
		"interest_rate": 10,
		"tenure":        12,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestCheckEligibilityNoHistory(t *testing.T) {
	f := newFixture(t, nil)
	id := f.registerCustomer(t, 50000, "")

	w := f.do(t, http.MethodPost, "/check-eligibility", map[string]any{
		"customer_id":   id,
		"loan_amount":   100000,
		"interest_rate": 10,
		"tenure":        12,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Approval           bool    `json:"approval"`
		InterestRate       float64 `json:"interest_rate"`
		Corrected          float64 `json:"corrected_interest_rate"`
		MonthlyInstallment float64 `json:"monthly_installment"`
	}
	decodeBody(t, w, &resp)
	if resp.Approval {
		t.Error("expected rejection for a customer with no history")
	}
	if resp.MonthlyInstallment != 8791.59 {
		t.Errorf("monthly_installment = %v, want 8791.59", resp.MonthlyInstallment)
	}
	if resp.Corrected != resp.InterestRate {
		t.Errorf("corrected rate %v differs from requested %v on rejection", resp.Corrected, resp.InterestRate)
	}
}

func TestCreateLoanRejectedKeepsNullID(t *testing.T) {
	f := newFixture(t, nil)
	id := f.registerCustomer(t, 50000, "")

	w := f.do(t, http.MethodPost, "/create-loan", map[string]any{
		"customer_id":   id,
		"loan_amount":   100000,
		"interest_rate": 10,
		"tenure":        12,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		LoanID       *int64 `json:"loan_id"`
		LoanApproved bool   `json:"loan_approved"`
		Message      string `json:"message"`
	}
	decodeBody(t, w, &resp)
	if resp.LoanApproved {
		t.Error("expected rejection")
	}
	if resp.LoanID != nil {
		t.Errorf("loan_id = %d, want null", *resp.LoanID)
	}
}

func TestCreateLoanApproved(t *testing.T) {
	f := newFixture(t, nil)
	id := f.registerCustomer(t, 80000, "")
	f.seedCompletedLoan(t, id)

	w := f.do(t, http.MethodPost, "/create-loan", map[string]any{
		"customer_id":   id,
		"loan_amount":   300000,
		"interest_rate": 9.5,
		"tenure":        24,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var resp struct {
		LoanID       *int64 `json:"loan_id"`
		LoanApproved bool   `json:"loan_approved"`
	}
	decodeBody(t, w, &resp)
	if !resp.LoanApproved || resp.LoanID == nil {
		t.Fatalf("expected approval with loan id: %s", w.Body.String())
	}

	// The loan is now visible through the view endpoints.
	view := f.do(t, http.MethodGet, fmt.Sprintf("/view-loan/%d", *resp.LoanID), nil)
	if view.Code != http.StatusOK {
		t.Errorf("view-loan status = %d, want 200", view.Code)
	}
}

func TestViewLoanNotFound(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/view-loan/7", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestViewLoansList(t *testing.T) {
	f := newFixture(t, nil)
	id := f.registerCustomer(t, 80000, "")
	f.seedCompletedLoan(t, id)

	w := f.do(t, http.MethodGet, fmt.Sprintf("/view-loans/%d", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var items []struct {
		LoanID         int64 `json:"loan_id"`
		RepaymentsLeft int   `json:"repayments_left"`
	}
	decodeBody(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("got %d loans, want 1", len(items))
	}
	if items[0].RepaymentsLeft != 0 {
		t.Errorf("repayments_left = %d, want 0", items[0].RepaymentsLeft)
	}
}

func TestCreditScoreEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	id := f.registerCustomer(t, 80000, "")
	f.seedCompletedLoan(t, id)

	w := f.do(t, http.MethodGet, fmt.Sprintf("/credit-score/%d", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		CreditScore    int `json:"credit_score"`
		LoanStatistics struct {
			TotalLoans     int `json:"total_loans"`
			CompletedLoans int `json:"completed_loans"`
		} `json:"loan_statistics"`
	}
	decodeBody(t, w, &resp)
	if resp.CreditScore != 100 {
		t.Errorf("credit_score = %d, want 100", resp.CreditScore)
	}
	if resp.LoanStatistics.TotalLoans != 1 || resp.LoanStatistics.CompletedLoans != 1 {
		t.Errorf("loan statistics = %+v", resp.LoanStatistics)
	}
}

func TestSystemInfoDemoMode(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/system-info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Mode string `json:"system_mode"`
		Date string `json:"current_system_date"`
	}
	decodeBody(t, w, &resp)
	if resp.Mode != "DEMO" || resp.Date != "2026-02-09" {
		t.Errorf("system info = %+v", resp)
	}
}

type stubRates struct {
	rate float64
	err  error
}

func (s stubRates) KeyRate(context.Context) (float64, error) {
	return s.rate, s.err
}

func TestKeyRateEndpoint(t *testing.T) {
	f := newFixture(t, stubRates{rate: 21.5})
	w := f.do(t, http.MethodGet, "/key-rate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]float64
	decodeBody(t, w, &resp)
	if resp["key_rate"] != 21.5 {
		t.Errorf("key_rate = %v, want 21.5", resp["key_rate"])
	}
}

func TestKeyRateUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/key-rate", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}

	f = newFixture(t, stubRates{err: errors.New("upstream down")})
	if w := f.do(t, http.MethodGet, "/key-rate", nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}
