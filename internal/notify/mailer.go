package notify

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/sethvargo/go-retry"
	gomail "gopkg.in/gomail.v2"
)

// Mailer sends OTP mail over SMTP with bounded retry.
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	maxAttempts int
	logger      *slog.Logger
}

// NewMailer constructs a Mailer. maxAttempts counts the initial send plus
// retries; values below 1 are treated as a single attempt.
func NewMailer(host string, port int, username, password, from string, maxAttempts int, logger *slog.Logger) *Mailer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Mailer{
		dialer:      gomail.NewDialer(host, port, username, password),
		from:        from,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// SendOTP delivers the verification code, retrying transient SMTP failures
// with exponential backoff.
func (m *Mailer) SendOTP(ctx context.Context, msg OTP) error {
	subject := "Verify your email"
	body := fmt.Sprintf("Your verification OTP is %s. It will expire in %d minutes.", msg.Code, int(msg.TTL.Minutes()))
	if msg.Reissued {
		subject = "New OTP for Email Verification"
		body = fmt.Sprintf("Your new OTP is %s. It will expire in %d minutes.", msg.Code, int(msg.TTL.Minutes()))
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.To)
	mail.SetHeader("Subject", subject)
	mail.SetBody("text/plain", body)

	backoff := retry.WithMaxRetries(uint64(m.maxAttempts-1), retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.dialer.DialAndSend(mail); err != nil {
			m.logger.Warn("otp mail send failed", "to", msg.To, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}
