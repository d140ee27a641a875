package domain

import "time"

// User represents a signup-funnel account keyed by email.
type User struct {
	ID               string
	Email            string
	PasswordHash     []byte
	OTP              *string
	OTPExpiresAt     *time.Time
	OTPAttempts      int
	IsVerified       bool
	IsMobileVerified bool
	FirstName        *string
	LastName         *string
	ZipCode          *string
	Mobile           *string
	ProfilePic       *string
	Resume           *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OTPState enumerates verification lifecycle states for a pending code.
const (
	OTPStateNone     = "none"
	OTPStatePending  = "pending"
	OTPStateExpired  = "expired"
	OTPStateVerified = "verified"
)

// OTPState reports the lifecycle state of the user's email OTP relative to now.
func (u User) OTPState(now time.Time) string {
	if u.IsVerified {
		return OTPStateVerified
	}
	if !u.HasPendingOTP() {
		return OTPStateNone
	}
	if now.UTC().After(u.OTPExpiresAt.UTC()) {
		return OTPStateExpired
	}
	return OTPStatePending
}

// HasPendingOTP reports whether an OTP is stored, expired or not.
func (u User) HasPendingOTP() bool {
	return u.OTP != nil && u.OTPExpiresAt != nil
}
