package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/repository"
)

// SetOTP stores a fresh code, replacing any pending one and resetting attempts.
func (r *Repository) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
	const query = `UPDATE users
		SET otp = $2,
			otp_expires_at = $3,
			otp_attempts = 0,
			updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, email, code, expiresAt.UTC()))
}

// ClaimOTP performs the verify transition as one conditional update. The row
// qualifies only while the code matches, the expiry is in the future, and the
// user is still unverified, so two concurrent claims cannot both succeed.
func (r *Repository) ClaimOTP(ctx context.Context, email, code string) (*domain.User, error) {
	const query = `UPDATE users
		SET is_verified = TRUE,
			otp = NULL,
			otp_expires_at = NULL,
			otp_attempts = 0,
			updated_at = NOW()
		WHERE email = $1
			AND otp = $2
			AND otp_expires_at > NOW()
			AND is_verified = FALSE
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, email, code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrInvalidArgument
		}
		return nil, err
	}
	return user, nil
}

// ClaimMobileOTP verifies a code issued for the mobile channel.
func (r *Repository) ClaimMobileOTP(ctx context.Context, email, code string) (*domain.User, error) {
	const query = `UPDATE users
		SET is_mobile_verified = TRUE,
			otp = NULL,
			otp_expires_at = NULL,
			otp_attempts = 0,
			updated_at = NOW()
		WHERE email = $1
			AND otp = $2
			AND otp_expires_at > NOW()
			AND is_mobile_verified = FALSE
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, email, code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrInvalidArgument
		}
		return nil, err
	}
	return user, nil
}

// RecordOTPMismatch bumps the attempt counter for the pending code and wipes
// the code once the counter reaches maxAttempts.
func (r *Repository) RecordOTPMismatch(ctx context.Context, email string, maxAttempts int) (int, error) {
	const query = `UPDATE users
		SET otp_attempts = otp_attempts + 1,
			updated_at = NOW()
		WHERE email = $1 AND otp IS NOT NULL
		RETURNING otp_attempts`
	row := r.pool.QueryRow(ctx, query, email)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrInvalidArgument
		}
		return 0, err
	}
	if maxAttempts > 0 && attempts >= maxAttempts {
		const invalidate = `UPDATE users
			SET otp = NULL,
				otp_expires_at = NULL,
				otp_attempts = 0,
				updated_at = NOW()
			WHERE email = $1`
		if _, err := r.pool.Exec(ctx, invalidate, email); err != nil {
			return attempts, err
		}
	}
	return attempts, nil
}
