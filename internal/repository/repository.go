package repository

import (
	"context"
	"time"

	"github.com/stepflow/signup-api/internal/domain"
)

// UserRepository persists signup-funnel accounts.
//
// Every OTP transition and profile merge is a single conditional statement so
// concurrent requests against the same email serialize inside the store.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	// SetOTP overwrites any pending code for the user and resets the attempt
	// counter. A previously issued code can no longer verify afterwards.
	SetOTP(ctx context.Context, email, code string, expiresAt time.Time) (*domain.User, error)

	// ClaimOTP atomically marks the user verified and clears the code, but only
	// when the stored code matches, has not expired, and the user is not yet
	// verified. ErrInvalidArgument is returned when no row qualifies.
	ClaimOTP(ctx context.Context, email, code string) (*domain.User, error)

	// ClaimMobileOTP is the mobile-channel variant of ClaimOTP; it flips the
	// mobile verification flag instead of the email one.
	ClaimMobileOTP(ctx context.Context, email, code string) (*domain.User, error)

	// RecordOTPMismatch increments the attempt counter for a pending code and
	// invalidates the code once maxAttempts is reached. Returns the counter
	// value after the increment.
	RecordOTPMismatch(ctx context.Context, email string, maxAttempts int) (int, error)

	UpdateName(ctx context.Context, email, firstName, lastName string) (*domain.User, error)
	UpdateZipCode(ctx context.Context, email, zipCode string) (*domain.User, error)
	UpdateMobile(ctx context.Context, email, mobile string) (*domain.User, error)
}
