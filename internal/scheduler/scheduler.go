// Package scheduler runs the daily installment-reminder sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/clock"
	"github.com/credapprove/credit-service/internal/models"
	"github.com/credapprove/credit-service/internal/repository"
	"github.com/credapprove/credit-service/internal/service"
)

// Scheduler drives periodic jobs off a cron expression.
type Scheduler struct {
	store    repository.Store
	notifier service.Notifier
	clk      clock.Clock
	log      *logrus.Logger
	cron     *cron.Cron
	spec     string
}

// New creates a scheduler that sends payment reminders on the given
// cron spec (e.g. "0 9 * * *" for 09:00 daily).
func New(store repository.Store, notifier service.Notifier, clk clock.Clock, spec string, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		clk:      clk,
		log:      log,
		cron:     cron.New(),
		spec:     spec,
	}
}

// Start registers the reminder job and begins the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.RunReminders(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("Reminder scheduler started with spec %q", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunReminders emails every customer whose loan has an installment due
// today. An installment falls due on the approval day-of-month, pulled
// in to the last day of shorter months.
func (s *Scheduler) RunReminders(ctx context.Context) {
	today := s.clk.Today()
	loans, err := s.store.ListActiveLoans(ctx, today)
	if err != nil {
		s.log.Errorf("Reminder sweep failed to list active loans: %v", err)
		return
	}

	sent := 0
	for i := range loans {
		loan := &loans[i]
		if !dueToday(loan, today) {
			continue
		}
		customer, err := s.store.GetCustomer(ctx, loan.CustomerID)
		if err != nil {
			s.log.Errorf("Reminder sweep failed to load customer %d: %v", loan.CustomerID, err)
			continue
		}
		if customer.Email == "" {
			continue
		}
		if err := s.notifier.PaymentReminder(customer.Email, customer.FullName(), today, loan.MonthlyInstallment); err != nil {
			s.log.Errorf("Failed to send reminder for loan %d: %v", loan.ID, err)
			continue
		}
		sent++
	}
	s.log.Infof("Reminder sweep complete: %d active loans, %d reminders sent", len(loans), sent)
}

// dueToday reports whether the loan's monthly installment falls on the
// given date. Loans approved on the 29th-31st come due on the last day
// of months too short to hold that day.
func dueToday(l *models.Loan, today time.Time) bool {
	if today.Equal(l.ApprovalDate) || today.Before(l.ApprovalDate) {
		return false
	}
	lastDay := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, today.Location()).Day()
	dueDay := l.ApprovalDate.Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return today.Day() == dueDay
}
