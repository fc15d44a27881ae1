// Command loader bulk-imports historical customer and loan data from
// CSV exports into the database, preserving source ids.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/config"
	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/repository"
)

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006", "1/2/2006"}

func main() {
	customersPath := flag.String("customers", "", "path to the customer CSV export")
	loansPath := flag.String("loans", "", "path to the loan CSV export")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if *customersPath == "" && *loansPath == "" {
		logger.Fatal("Nothing to import: pass -customers and/or -loans")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()
	repo := repository.NewPostgres(db)
	if err := repo.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	if *customersPath != "" {
		n, err := importCustomers(ctx, repo, *customersPath)
		if err != nil {
			logger.Fatalf("Customer import failed: %v", err)
		}
		logger.Infof("Imported %d customers from %s", n, *customersPath)
	}

	if *loansPath != "" {
		n, err := importLoans(ctx, repo, *loansPath)
		if err != nil {
			logger.Fatalf("Loan import failed: %v", err)
		}
		logger.Infof("Imported %d loans from %s", n, *loansPath)
	}

	if err := repo.ResetSequences(ctx); err != nil {
		logger.Fatalf("Failed to reset id sequences: %v", err)
	}
}

// readCSV returns the rows of path plus a column-name index built from
// the header row. Header matching is case-insensitive.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, nil, fmt.Errorf("%s has no header row", path)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return rows[1:], columns, nil
}

func field(row []string, columns map[string]int, name string) (string, error) {
	i, ok := columns[name]
	if !ok {
		return "", fmt.Errorf("missing column %q", name)
	}
	if i >= len(row) {
		return "", fmt.Errorf("row too short for column %q", name)
	}
	return strings.TrimSpace(row[i]), nil
}

func intField(row []string, columns map[string]int, name string) (int64, error) {
	s, err := field(row, columns, name)
	if err != nil {
		return 0, err
	}
	// Spreadsheet exports render integers as "3.0"
	v, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v.IntPart(), nil
}

func decimalField(row []string, columns map[string]int, name string) (decimal.Decimal, error) {
	s, err := field(row, columns, name)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}

func dateField(row []string, columns map[string]int, name string) (time.Time, error) {
	s, err := field(row, columns, name)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("column %q: unrecognized date %q", name, s)
}

func importCustomers(ctx context.Context, repo *repository.Postgres, path string) (int, error) {
	rows, columns, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for n, row := range rows {
		c, err := customerFromRow(row, columns)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", n+2, err)
		}
		if err := repo.ImportCustomer(ctx, c); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func customerFromRow(row []string, columns map[string]int) (*models.Customer, error) {
	c := &models.Customer{}
	var err error
	if c.ID, err = intField(row, columns, "customer id"); err != nil {
		return nil, err
	}
	if c.FirstName, err = field(row, columns, "first name"); err != nil {
		return nil, err
	}
	if c.LastName, err = field(row, columns, "last name"); err != nil {
		return nil, err
	}
	age, err := intField(row, columns, "age")
	if err != nil {
		return nil, err
	}
	c.Age = int(age)
	if c.PhoneNumber, err = field(row, columns, "phone number"); err != nil {
		return nil, err
	}
	if c.MonthlySalary, err = decimalField(row, columns, "monthly salary"); err != nil {
		return nil, err
	}
	if c.ApprovedLimit, err = decimalField(row, columns, "approved limit"); err != nil {
		return nil, err
	}
	return c, nil
}

func importLoans(ctx context.Context, repo *repository.Postgres, path string) (int, error) {
	rows, columns, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for n, row := range rows {
		l, err := loanFromRow(row, columns)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", n+2, err)
		}
		if err := repo.ImportLoan(ctx, l); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// loanFromRow maps a loan export row. The source sheet also carries a
// precomputed current-debt column, which is ignored: outstanding debt
// is always derived from amount, installment and EMIs paid.
func loanFromRow(row []string, columns map[string]int) (*models.Loan, error) {
	l := &models.Loan{}
	var err error
	if l.ID, err = intField(row, columns, "loan id"); err != nil {
		return nil, err
	}
	if l.CustomerID, err = intField(row, columns, "customer id"); err != nil {
		return nil, err
	}
	if l.Amount, err = decimalField(row, columns, "loan amount"); err != nil {
		return nil, err
	}
	tenure, err := intField(row, columns, "tenure")
	if err != nil {
		return nil, err
	}
	l.TenureMonths = int(tenure)
	if l.AnnualRatePct, err = decimalField(row, columns, "interest rate"); err != nil {
		return nil, err
	}
	if l.MonthlyInstallment, err = decimalField(row, columns, "monthly payment"); err != nil {
		return nil, err
	}
	paid, err := intField(row, columns, "emis paid on time")
	if err != nil {
		return nil, err
	}
	l.EMIsPaidOnTime = int(paid)
	if l.ApprovalDate, err = dateField(row, columns, "date of approval"); err != nil {
		return nil, err
	}
	if l.EndDate, err = dateField(row, columns, "end date"); err != nil {
		return nil, err
	}
	return l, nil
}
