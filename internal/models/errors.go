package models

import "errors"

// Sentinel errors surfaced to the transport layer. Business rejections
// (affordability, low score) are ordinary results, not errors.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrInvalidInput     = errors.New("invalid input")
)
