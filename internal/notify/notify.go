package notify

import (
	"context"
	"time"
)

// OTP describes a one-time passcode to deliver.
type OTP struct {
	To       string
	Code     string
	TTL      time.Duration
	Reissued bool
}

// Sender delivers one-time passcodes over a channel (email, console, ...).
// Delivery is best effort: callers commit state first and treat a send
// failure as a warning, never as a rollback.
type Sender interface {
	SendOTP(ctx context.Context, msg OTP) error
}
