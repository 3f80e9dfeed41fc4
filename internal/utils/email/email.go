package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/securelink/internal/config"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending ring alerts via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = func(e *email.Email) error {
		addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		}
		return e.Send(addr, auth)
	}
	return s
}

// SendRingAlert notifies the fraud desk about a newly formed ring
func (s *Sender) SendRingAlert(ring *models.FraudRing) error {
	e := s.ringAlert(ring)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send ring alert for %s to %s: %v", ring.ID, s.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send ring alert: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}

func (s *Sender) ringAlert(ring *models.FraudRing) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("Fraud ring %s detected across %d banks", ring.ID, len(ring.BanksInvolved))

	banks := make([]string, 0, len(ring.BanksInvolved))
	for _, b := range ring.BanksInvolved {
		banks = append(banks, string(b))
	}

	// Format email body
	var body strings.Builder
	fmt.Fprintf(&body, "A cross-bank fraud ring was detected at %s.\n\n",
		time.UnixMilli(ring.Timestamp).UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&body, "Ring: %s\n", ring.ID)
	fmt.Fprintf(&body, "Fingerprint: %s\n", ring.Fingerprint)
	fmt.Fprintf(&body, "Banks involved: %s\n", strings.Join(banks, ", "))
	fmt.Fprintf(&body, "Total amount: %d INR\n\n", ring.TotalAmount())
	body.WriteString("Transactions:\n")
	for _, tx := range ring.Transactions {
		fmt.Fprintf(&body, "  %s  %-5s  %8d INR  %s  card %s  device %s\n",
			tx.ID, tx.Bank, tx.Amount, tx.Merchant, tx.MaskedCard(), tx.Device)
	}
	body.WriteString("\nBest regards,\nSecureLink")
	e.Text = []byte(body.String())

	return e
}
