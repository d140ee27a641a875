package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/notify"
	"github.com/stepflow/signup-api/internal/repository"
)

var (
	ErrAlreadyVerified = errors.New("auth: user already verified")
	ErrNoPendingOTP    = errors.New("auth: no pending otp")
	ErrOTPExpired      = errors.New("auth: otp expired")
	ErrOTPMismatch     = errors.New("auth: invalid otp")
	ErrTooManyAttempts = errors.New("auth: too many otp attempts")
)

var otpCodeSpace = big.NewInt(1_000_000)

// VerifyEmailOTP runs the verify transition. The happy path is one atomic
// conditional update in the store; only failures fall back to a read for
// classification, so two concurrent verifies cannot both claim the code.
func (s Service) VerifyEmailOTP(ctx context.Context, email, code string) (*domain.User, error) {
	code = strings.TrimSpace(code)
	user, err := s.users.ClaimOTP(ctx, email, code)
	if err == nil {
		s.logger.Info("email verified", "user_id", user.ID)
		return user, nil
	}
	if !errors.Is(err, repository.ErrInvalidArgument) {
		return nil, err
	}
	return nil, s.classifyOTPFailure(ctx, email, code, false)
}

// VerifyMobileOTP verifies a code issued for the mobile channel and flips the
// mobile verification flag.
func (s Service) VerifyMobileOTP(ctx context.Context, email, code string) (*domain.User, error) {
	code = strings.TrimSpace(code)
	user, err := s.users.ClaimMobileOTP(ctx, email, code)
	if err == nil {
		s.logger.Info("mobile verified", "user_id", user.ID)
		return user, nil
	}
	if !errors.Is(err, repository.ErrInvalidArgument) {
		return nil, err
	}
	return nil, s.classifyOTPFailure(ctx, email, code, true)
}

// ResendOTP replaces any pending code and dispatches the new one. The old
// code can no longer verify once this returns.
func (s Service) ResendOTP(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if user.IsVerified {
		return "", ErrAlreadyVerified
	}

	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	if _, err := s.users.SetOTP(ctx, email, code, time.Now().UTC().Add(s.otpTTL())); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	s.logger.Info("otp reissued", "user_id", user.ID)

	if err := s.mail.SendOTP(ctx, notify.OTP{To: email, Code: code, TTL: s.otpTTL(), Reissued: true}); err != nil {
		s.logger.Warn("otp dispatch failed after resend", "user_id", user.ID, "error", err)
		return "OTP email could not be delivered. Use resend-otp to request a new code.", nil
	}
	return "", nil
}

// StartMobileVerification saves the mobile number on the record found by
// email and issues a dev OTP over the console channel.
func (s Service) StartMobileVerification(ctx context.Context, email, mobile string) (*domain.User, error) {
	user, err := s.users.UpdateMobile(ctx, email, mobile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, err
	}
	user, err = s.users.SetOTP(ctx, email, code, time.Now().UTC().Add(s.otpTTL()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := s.sms.SendOTP(ctx, notify.OTP{To: mobile, Code: code, TTL: s.otpTTL()}); err != nil {
		s.logger.Warn("mobile otp dispatch failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// classifyOTPFailure explains why an atomic claim did not apply. Expiry takes
// precedence over mismatch: a correct-but-late code must never read as
// invalid.
func (s Service) classifyOTPFailure(ctx context.Context, email, code string, mobile bool) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	verified := user.IsVerified
	if mobile {
		verified = user.IsMobileVerified
	}
	if verified {
		return ErrAlreadyVerified
	}
	if !user.HasPendingOTP() {
		return ErrNoPendingOTP
	}
	if time.Now().UTC().After(user.OTPExpiresAt.UTC()) {
		return ErrOTPExpired
	}
	attempts, err := s.users.RecordOTPMismatch(ctx, email, s.otpMaxAttempts())
	if err != nil && !errors.Is(err, repository.ErrInvalidArgument) {
		return err
	}
	if attempts >= s.otpMaxAttempts() {
		s.logger.Warn("otp invalidated after repeated mismatches", "user_id", user.ID, "attempts", attempts)
		return ErrTooManyAttempts
	}
	return ErrOTPMismatch
}

// randomOTPCode draws a 6-digit code uniformly from a CSPRNG.
func randomOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
