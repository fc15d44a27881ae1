package repository

import (
	"context"
	"time"

	"github.com/credapprove/credit-service/internal/models"
)

// Store is the persistence collaborator the decision engine reads its
// loan snapshots from and writes approved loans into.
type Store interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CreateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id int64) (*models.Loan, error)
	ListLoans(ctx context.Context, customerID int64) ([]models.Loan, error)
	ListActiveLoans(ctx context.Context, asOf time.Time) ([]models.Loan, error)

	// WithCustomerLock runs fn while holding a per-customer write
	// lock, so that two concurrent loan requests cannot both read the
	// same snapshot and jointly overshoot the 50%-salary ceiling.
	WithCustomerLock(ctx context.Context, customerID int64, fn func(Store) error) error
}
