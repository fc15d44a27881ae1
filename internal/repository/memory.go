package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/credapprove/credit-service/internal/models"
)

// Memory is an in-memory Store used by tests and demo runs that do
// not want a running database.
type Memory struct {
	mu        sync.RWMutex
	customers map[int64]models.Customer
	loans     map[int64]models.Loan
	nextCust  int64
	nextLoan  int64

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex
}

// NewMemory initializes an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		customers: make(map[int64]models.Customer),
		loans:     make(map[int64]models.Loan),
		nextCust:  1,
		nextLoan:  1,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// CreateCustomer stores a new customer and assigns its id.
func (m *Memory) CreateCustomer(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextCust
	m.nextCust++
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.customers[c.ID] = *c
	return nil
}

// GetCustomer retrieves a customer by id.
func (m *Memory) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, models.ErrCustomerNotFound)
	}
	return &c, nil
}

// CreateLoan stores a new loan and assigns its id.
func (m *Memory) CreateLoan(_ context.Context, l *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextLoan
	m.nextLoan++
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	m.loans[l.ID] = *l
	return nil
}

// GetLoan retrieves a loan by id.
func (m *Memory) GetLoan(_ context.Context, id int64) (*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	return &l, nil
}

// ListLoans returns every loan belonging to a customer, ordered by id.
func (m *Memory) ListLoans(_ context.Context, customerID int64) ([]models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []models.Loan
	for id := int64(1); id < m.nextLoan; id++ {
		if l, ok := m.loans[id]; ok && l.CustomerID == customerID {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

// ListActiveLoans returns all loans still running at the given date.
func (m *Memory) ListActiveLoans(_ context.Context, asOf time.Time) ([]models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []models.Loan
	for id := int64(1); id < m.nextLoan; id++ {
		if l, ok := m.loans[id]; ok && l.ActiveAt(asOf) {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

// WithCustomerLock serializes callers per customer with a plain mutex.
func (m *Memory) WithCustomerLock(_ context.Context, customerID int64, fn func(Store) error) error {
	m.lockMu.Lock()
	lock, ok := m.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[customerID] = lock
	}
	m.lockMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(m)
}
