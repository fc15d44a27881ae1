package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/credapprove/credit-service/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// methods serve plain calls and locked transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres provides database operations against the credit schema
type Postgres struct {
	db *sql.DB
	q  querier
}

// NewPostgres initializes a new Postgres-backed store
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS credit;

CREATE TABLE IF NOT EXISTS credit.customers (
	id BIGSERIAL PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	age INT NOT NULL,
	phone_number TEXT NOT NULL,
	email TEXT,
	monthly_salary NUMERIC(12,2) NOT NULL,
	approved_limit NUMERIC(14,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credit.loans (
	id BIGSERIAL PRIMARY KEY,
	customer_id BIGINT NOT NULL REFERENCES credit.customers(id) ON DELETE CASCADE,
	loan_amount NUMERIC(14,2) NOT NULL,
	tenure INT NOT NULL,
	interest_rate NUMERIC(5,2) NOT NULL,
	monthly_payment NUMERIC(14,2) NOT NULL,
	emis_paid_on_time INT NOT NULL DEFAULT 0,
	date_of_approval DATE NOT NULL,
	end_date DATE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_loans_customer ON credit.loans (customer_id);
CREATE INDEX IF NOT EXISTS idx_loans_end_date ON credit.loans (end_date);
`

// Migrate bootstraps the schema. Safe to run on every start.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateCustomer creates a new customer in the database
func (p *Postgres) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO credit.customers (first_name, last_name, age, phone_number, email, monthly_salary, approved_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := p.q.QueryRowContext(ctx, query,
		c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.Email, c.MonthlySalary, c.ApprovedLimit).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by id
func (p *Postgres) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c := &models.Customer{}
	var email sql.NullString
	query := `
		SELECT id, first_name, last_name, age, phone_number, email, monthly_salary, approved_limit, created_at, updated_at
		FROM credit.customers
		WHERE id = $1`
	err := p.q.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Age, &c.PhoneNumber, &email,
			&c.MonthlySalary, &c.ApprovedLimit, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, models.ErrCustomerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	c.Email = email.String
	return c, nil
}

// CreateLoan creates a new loan in the database
func (p *Postgres) CreateLoan(ctx context.Context, l *models.Loan) error {
	query := `
		INSERT INTO credit.loans (customer_id, loan_amount, tenure, interest_rate, monthly_payment, emis_paid_on_time, date_of_approval, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := p.q.QueryRowContext(ctx, query,
		l.CustomerID, l.Amount, l.TenureMonths, l.AnnualRatePct, l.MonthlyInstallment,
		l.EMIsPaidOnTime, l.ApprovalDate, l.EndDate).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

const loanColumns = `id, customer_id, loan_amount, tenure, interest_rate, monthly_payment, emis_paid_on_time, date_of_approval, end_date, created_at, updated_at`

// GetLoan retrieves a loan by id
func (p *Postgres) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	l := &models.Loan{}
	query := `SELECT ` + loanColumns + ` FROM credit.loans WHERE id = $1`
	err := p.q.QueryRowContext(ctx, query, id).
		Scan(&l.ID, &l.CustomerID, &l.Amount, &l.TenureMonths, &l.AnnualRatePct,
			&l.MonthlyInstallment, &l.EMIsPaidOnTime, &l.ApprovalDate, &l.EndDate,
			&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}
	return l, nil
}

// ListLoans retrieves every loan belonging to a customer
func (p *Postgres) ListLoans(ctx context.Context, customerID int64) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM credit.loans WHERE customer_id = $1 ORDER BY id`
	rows, err := p.q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for customer %d: %w", customerID, err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

// ListActiveLoans retrieves all loans still running at the given date
func (p *Postgres) ListActiveLoans(ctx context.Context, asOf time.Time) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM credit.loans WHERE end_date >= $1 ORDER BY customer_id, id`
	rows, err := p.q.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func scanLoans(rows *sql.Rows) ([]models.Loan, error) {
	var loans []models.Loan
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.Amount, &l.TenureMonths, &l.AnnualRatePct,
			&l.MonthlyInstallment, &l.EMIsPaidOnTime, &l.ApprovalDate, &l.EndDate,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read loans: %w", err)
	}
	return loans, nil
}

// WithCustomerLock serializes writes per customer with a transactional
// advisory lock, released on commit or rollback.
func (p *Postgres) WithCustomerLock(ctx context.Context, customerID int64, fn func(Store) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, customerID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}
	if err := fn(&Postgres{db: p.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ImportCustomer inserts a customer keeping its source id. Used by the
// bulk loader; regular registration goes through CreateCustomer.
func (p *Postgres) ImportCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO credit.customers (id, first_name, last_name, age, phone_number, email, monthly_salary, approved_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO NOTHING`
	if _, err := p.q.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.Email, c.MonthlySalary, c.ApprovedLimit); err != nil {
		return fmt.Errorf("failed to import customer %d: %w", c.ID, err)
	}
	return nil
}

// ImportLoan inserts a loan keeping its source id.
func (p *Postgres) ImportLoan(ctx context.Context, l *models.Loan) error {
	query := `
		INSERT INTO credit.loans (id, customer_id, loan_amount, tenure, interest_rate, monthly_payment, emis_paid_on_time, date_of_approval, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO NOTHING`
	if _, err := p.q.ExecContext(ctx, query,
		l.ID, l.CustomerID, l.Amount, l.TenureMonths, l.AnnualRatePct, l.MonthlyInstallment,
		l.EMIsPaidOnTime, l.ApprovalDate, l.EndDate); err != nil {
		return fmt.Errorf("failed to import loan %d: %w", l.ID, err)
	}
	return nil
}

// ResetSequences realigns the id sequences after explicit-id imports.
func (p *Postgres) ResetSequences(ctx context.Context) error {
	stmts := []string{
		`SELECT setval(pg_get_serial_sequence('credit.customers', 'id'), COALESCE(MAX(id), 1)) FROM credit.customers`,
		`SELECT setval(pg_get_serial_sequence('credit.loans', 'id'), COALESCE(MAX(id), 1)) FROM credit.loans`,
	}
	for _, stmt := range stmts {
		if _, err := p.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset sequence: %w", err)
		}
	}
	return nil
}
