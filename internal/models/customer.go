package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a registered borrower
type Customer struct {
	ID            int64           `json:"id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Age           int             `json:"age"`
	PhoneNumber   string          `json:"phone_number"`
	Email         string          `json:"email,omitempty"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	ApprovedLimit decimal.Decimal `json:"approved_limit"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// FullName returns the customer's display name
func (c *Customer) FullName() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}
