package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/repository"
)

const userColumns = `id, email, password_hash, otp, otp_expires_at, otp_attempts,
	is_verified, is_mobile_verified, first_name, last_name, zip_code, mobile,
	profile_pic, resume, created_at, updated_at`

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var _ repository.UserRepository = (*Repository)(nil)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, otp, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`
	var expires *time.Time
	if user.OTPExpiresAt != nil {
		value := user.OTPExpiresAt.UTC()
		expires = &value
	}
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.OTP, expires)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by its identity key. Matching is exact.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID fetches a user by primary key.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateName merges first and last name into the record found by email.
func (r *Repository) UpdateName(ctx context.Context, email, firstName, lastName string) (*domain.User, error) {
	const query = `UPDATE users
		SET first_name = $2,
			last_name = $3,
			updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, email, firstName, lastName))
}

// UpdateZipCode merges the ZIP code into the record found by email.
func (r *Repository) UpdateZipCode(ctx context.Context, email, zipCode string) (*domain.User, error) {
	const query = `UPDATE users
		SET zip_code = $2,
			updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, email, zipCode))
}

// UpdateMobile merges the mobile number into the record found by email.
func (r *Repository) UpdateMobile(ctx context.Context, email, mobile string) (*domain.User, error) {
	const query = `UPDATE users
		SET mobile = $2,
			updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, email, mobile))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u          domain.User
		otp        sql.NullString
		otpExpires sql.NullTime
		firstName  sql.NullString
		lastName   sql.NullString
		zipCode    sql.NullString
		mobile     sql.NullString
		profilePic sql.NullString
		resume     sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&otp,
		&otpExpires,
		&u.OTPAttempts,
		&u.IsVerified,
		&u.IsMobileVerified,
		&firstName,
		&lastName,
		&zipCode,
		&mobile,
		&profilePic,
		&resume,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if otp.Valid {
		value := otp.String
		u.OTP = &value
	}
	if otpExpires.Valid {
		value := otpExpires.Time.UTC()
		u.OTPExpiresAt = &value
	}
	u.FirstName = nullableString(firstName)
	u.LastName = nullableString(lastName)
	u.ZipCode = nullableString(zipCode)
	u.Mobile = nullableString(mobile)
	u.ProfilePic = nullableString(profilePic)
	u.Resume = nullableString(resume)
	return &u, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	value := v.String
	return &value
}
