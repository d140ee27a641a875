package notify

import (
	"context"

	"log/slog"
)

// ConsoleSender logs codes instead of delivering them. It stands in for an
// SMS gateway in development; wiring a real provider replaces this type.
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender constructs a ConsoleSender.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

// SendOTP writes the code to the log.
func (c *ConsoleSender) SendOTP(_ context.Context, msg OTP) error {
	c.logger.Info("dev otp issued", "to", msg.To, "otp", msg.Code, "ttl", msg.TTL)
	return nil
}
