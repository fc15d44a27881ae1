package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/config"
)

// Sender handles sending customer emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// LoanApproved sends a confirmation for a freshly approved loan
func (s *Sender) LoanApproved(to, name string, amount, installment, rate decimal.Decimal, endDate time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Loan Approved"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your loan of %s has been approved at an interest rate of %s%%.\n"+
			"Monthly installment: %s\n"+
			"Final installment due: %s\n"+
			"\nBest regards,\nCredit Service",
		name, amount.StringFixed(2), rate.StringFixed(2),
		installment.StringFixed(2), endDate.Format("2006-01-02"),
	)
	e.Text = []byte(body)
	return s.send(e)
}

// PaymentReminder sends a reminder for an installment falling due
func (s *Sender) PaymentReminder(to, name string, dueDate time.Time, amount decimal.Decimal) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Upcoming Loan Installment Reminder"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"This is a reminder that your loan installment of %s is due on %s.\n"+
			"Please ensure sufficient funds are available in your account.\n"+
			"\nBest regards,\nCredit Service",
		name, amount.StringFixed(2), dueDate.Format("2006-01-02"),
	)
	e.Text = []byte(body)
	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
