package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/service"
)

// KeyRater supplies the central-bank policy rate for the diagnostic
// endpoint. May be absent.
type KeyRater interface {
	KeyRate(ctx context.Context) (float64, error)
}

// Handler exposes the credit service over HTTP.
type Handler struct {
	svc      *service.Service
	rates    KeyRater
	validate *validator.Validate
	log      *logrus.Logger
}

// NewHandler initializes the HTTP handler. rates may be nil.
func NewHandler(svc *service.Service, rates KeyRater, log *logrus.Logger) *Handler {
	return &Handler{
		svc:      svc,
		rates:    rates,
		validate: validator.New(),
		log:      log,
	}
}

// Router wires all routes onto a fresh mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/check-eligibility", h.CheckEligibility).Methods("POST")
	r.HandleFunc("/create-loan", h.CreateLoan).Methods("POST")
	r.HandleFunc("/view-loan/{loan_id}", h.ViewLoan).Methods("GET")
	r.HandleFunc("/view-loans/{customer_id}", h.ViewLoans).Methods("GET")
	r.HandleFunc("/credit-score/{customer_id}", h.CreditScore).Methods("GET")
	r.HandleFunc("/emi-capacity/{customer_id}", h.EMICapacity).Methods("GET")
	r.HandleFunc("/system-info", h.SystemInfo).Methods("GET")
	r.HandleFunc("/key-rate", h.KeyRate).Methods("GET")
	return r
}

type registerRequest struct {
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name" validate:"required"`
	Age           int     `json:"age" validate:"required,gt=0"`
	MonthlyIncome float64 `json:"monthly_income" validate:"required,gt=0"`
	PhoneNumber   string  `json:"phone_number" validate:"required"`
	Email         string  `json:"email" validate:"omitempty,email"`
}

type registerResponse struct {
	CustomerID    int64   `json:"customer_id"`
	Name          string  `json:"name"`
	Age           int     `json:"age"`
	MonthlyIncome float64 `json:"monthly_income"`
	ApprovedLimit float64 `json:"approved_limit"`
	PhoneNumber   string  `json:"phone_number"`
}

// Register handles customer registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	customer, err := h.svc.RegisterCustomer(r.Context(), service.RegisterInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Age:           req.Age,
		PhoneNumber:   req.PhoneNumber,
		Email:         req.Email,
		MonthlyIncome: decimal.NewFromFloat(req.MonthlyIncome),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, registerResponse{
		CustomerID:    customer.ID,
		Name:          customer.FullName(),
		Age:           customer.Age,
		MonthlyIncome: money(customer.MonthlySalary),
		ApprovedLimit: money(customer.ApprovedLimit),
		PhoneNumber:   customer.PhoneNumber,
	})
}

type loanRequest struct {
	CustomerID   int64   `json:"customer_id" validate:"required,gt=0"`
	LoanAmount   float64 `json:"loan_amount" validate:"required,gt=0"`
	InterestRate float64 `json:"interest_rate" validate:"gte=0"`
	Tenure       int     `json:"tenure" validate:"required,gt=0"`
}

type eligibilityResponse struct {
	CustomerID            int64   `json:"customer_id"`
	Approval              bool    `json:"approval"`
	InterestRate          float64 `json:"interest_rate"`
	CorrectedInterestRate float64 `json:"corrected_interest_rate"`
	Tenure                int     `json:"tenure"`
	MonthlyInstallment    float64 `json:"monthly_installment"`
	Message               string  `json:"message,omitempty"`
}

// CheckEligibility handles a non-mutating loan eligibility check
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.CheckEligibility(r.Context(), req.CustomerID,
		decimal.NewFromFloat(req.LoanAmount), decimal.NewFromFloat(req.InterestRate), req.Tenure)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, eligibilityResponse{
		CustomerID:            res.CustomerID,
		Approval:              res.Approved,
		InterestRate:          money(res.InterestRate),
		CorrectedInterestRate: money(res.CorrectedInterestRate),
		Tenure:                res.TenureMonths,
		MonthlyInstallment:    money(res.MonthlyInstallment),
		Message:               res.Message,
	})
}

type createLoanResponse struct {
	LoanID             *int64  `json:"loan_id"`
	CustomerID         int64   `json:"customer_id"`
	LoanApproved       bool    `json:"loan_approved"`
	Message            string  `json:"message"`
	MonthlyInstallment float64 `json:"monthly_installment"`
}

// CreateLoan handles loan creation; persists only on approval
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.CreateLoan(r.Context(), req.CustomerID,
		decimal.NewFromFloat(req.LoanAmount), decimal.NewFromFloat(req.InterestRate), req.Tenure)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Approved {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, createLoanResponse{
		LoanID:             res.LoanID,
		CustomerID:         res.CustomerID,
		LoanApproved:       res.Approved,
		Message:            res.Message,
		MonthlyInstallment: money(res.MonthlyInstallment),
	})
}

type customerSummary struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age"`
}

type loanDetailResponse struct {
	ID             int64           `json:"id"`
	Customer       customerSummary `json:"customer"`
	LoanAmount     float64         `json:"loan_amount"`
	InterestRate   float64         `json:"interest_rate"`
	MonthlyPayment float64         `json:"monthly_payment"`
	Tenure         int             `json:"tenure"`
}

// ViewLoan returns one loan with its customer summary
func (h *Handler) ViewLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "loan_id")
	if !ok {
		return
	}
	view, err := h.svc.ViewLoan(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loanDetailResponse{
		ID: view.Loan.ID,
		Customer: customerSummary{
			ID:          view.Customer.ID,
			FirstName:   view.Customer.FirstName,
			LastName:    view.Customer.LastName,
			PhoneNumber: view.Customer.PhoneNumber,
			Age:         view.Customer.Age,
		},
		LoanAmount:     money(view.Loan.Amount),
		InterestRate:   money(view.Loan.AnnualRatePct),
		MonthlyPayment: money(view.Loan.MonthlyInstallment),
		Tenure:         view.Loan.TenureMonths,
	})
}

type loanListItem struct {
	ID                 int64   `json:"loan_id"`
	LoanAmount         float64 `json:"loan_amount"`
	InterestRate       float64 `json:"interest_rate"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	RepaymentsLeft     int     `json:"repayments_left"`
}

// ViewLoans returns every loan of a customer
func (h *Handler) ViewLoans(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "customer_id")
	if !ok {
		return
	}
	loans, err := h.svc.ViewLoans(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]loanListItem, 0, len(loans))
	for _, l := range loans {
		items = append(items, loanListItem{
			ID:                 l.ID,
			LoanAmount:         money(l.Amount),
			InterestRate:       money(l.AnnualRatePct),
			MonthlyInstallment: money(l.MonthlyInstallment),
			RepaymentsLeft:     l.RepaymentsLeft(),
		})
	}
	h.writeJSON(w, http.StatusOK, items)
}

type loanStatistics struct {
	TotalLoans     int `json:"total_loans"`
	ActiveLoans    int `json:"active_loans"`
	CompletedLoans int `json:"completed_loans"`
}

type creditScoreResponse struct {
	CustomerID       int64          `json:"customer_id"`
	CustomerName     string         `json:"customer_name"`
	AsOf             string         `json:"as_of"`
	CreditScore      int            `json:"credit_score"`
	CurrentDebt      float64        `json:"current_debt"`
	UtilizationRatio float64        `json:"utilization_ratio"`
	LoanStatistics   loanStatistics `json:"loan_statistics"`
}

// CreditScore returns the diagnostic score breakdown
func (h *Handler) CreditScore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "customer_id")
	if !ok {
		return
	}
	report, err := h.svc.CreditScore(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	bd := report.Breakdown
	h.writeJSON(w, http.StatusOK, creditScoreResponse{
		CustomerID:       report.CustomerID,
		CustomerName:     report.CustomerName,
		AsOf:             report.AsOf,
		CreditScore:      bd.Score,
		CurrentDebt:      money(bd.CurrentDebt),
		UtilizationRatio: bd.UtilizationRatio,
		LoanStatistics: loanStatistics{
			TotalLoans:     bd.TotalLoans,
			ActiveLoans:    bd.ActiveLoans,
			CompletedLoans: bd.CompletedLoans,
		},
	})
}

type emiCapacityResponse struct {
	CustomerID         int64   `json:"customer_id"`
	CustomerName       string  `json:"customer_name"`
	MonthlySalary      float64 `json:"monthly_salary"`
	FiftyPercentSalary float64 `json:"fifty_percent_salary"`
	CurrentTotalEMIs   float64 `json:"current_total_emis"`
	RemainingCapacity  float64 `json:"remaining_emi_capacity"`
	CanAffordNewLoan   bool    `json:"can_afford_new_loan"`
	ActiveLoansCount   int     `json:"active_loans_count"`
}

// EMICapacity returns the customer's installment headroom
func (h *Handler) EMICapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "customer_id")
	if !ok {
		return
	}
	report, err := h.svc.EMICapacity(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, emiCapacityResponse{
		CustomerID:         report.CustomerID,
		CustomerName:       report.CustomerName,
		MonthlySalary:      money(report.MonthlySalary),
		FiftyPercentSalary: money(report.Ceiling),
		CurrentTotalEMIs:   money(report.CurrentEMIs),
		RemainingCapacity:  money(report.Headroom),
		CanAffordNewLoan:   report.CanAffordMore,
		ActiveLoansCount:   report.ActiveLoanCount,
	})
}

// SystemInfo reports the clock mode and effective date
func (h *Handler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Info())
}

// KeyRate reports the central-bank policy rate benchmark
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "key rate source not configured"})
		return
	}
	rate, err := h.rates.KeyRate(r.Context())
	if err != nil {
		h.log.Errorf("Failed to fetch key rate: %v", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch key rate"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]float64{"key_rate": rate})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCustomerNotFound), errors.Is(err, models.ErrLoanNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.log.Errorf("Internal error: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

// money rounds a decimal amount for presentation.
func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
