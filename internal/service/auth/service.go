package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/stepflow/signup-api/internal/config"
	"github.com/stepflow/signup-api/internal/crypto"
	"github.com/stepflow/signup-api/internal/domain"
	jwtpkg "github.com/stepflow/signup-api/internal/jwt"
	"github.com/stepflow/signup-api/internal/notify"
	"github.com/stepflow/signup-api/internal/repository"
)

var (
	ErrMissingFields      = errors.New("auth: all fields are required")
	ErrPasswordMismatch   = errors.New("auth: passwords do not match")
	ErrUserExists         = errors.New("auth: user already exists")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotVerified        = errors.New("auth: email not verified")
	ErrUserNotFound       = errors.New("auth: user not found")
)

// Service handles registration, login and the OTP lifecycle.
type Service struct {
	users   repository.UserRepository
	mail    notify.Sender
	sms     notify.Sender
	logger  *slog.Logger
	cfg     config.APIConfig
	newCode func() (string, error)
}

// New constructs a Service. mail delivers email OTPs; sms delivers mobile
// OTPs (a console stub in development).
func New(users repository.UserRepository, mail, sms notify.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		users:   users,
		mail:    mail,
		sms:     sms,
		logger:  logger,
		cfg:     cfg,
		newCode: randomOTPCode,
	}
}

// RegisterResult reports the registration outcome. Warning is set when the
// account was created but the OTP mail could not be delivered.
type RegisterResult struct {
	User    *domain.User
	Warning string
}

// Register creates an unverified account and issues its first OTP. The OTP is
// stored in the same insert as the credentials, then mailed best effort.
func (s Service) Register(ctx context.Context, email, password, confirmPassword string) (RegisterResult, error) {
	if strings.TrimSpace(email) == "" || password == "" || confirmPassword == "" {
		return RegisterResult{}, ErrMissingFields
	}
	if password != confirmPassword {
		return RegisterResult{}, ErrPasswordMismatch
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return RegisterResult{}, err
	}
	code, err := s.newCode()
	if err != nil {
		return RegisterResult{}, err
	}
	expires := time.Now().UTC().Add(s.otpTTL())

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		OTP:          &code,
		OTPExpiresAt: &expires,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RegisterResult{}, ErrUserExists
		}
		return RegisterResult{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)

	result := RegisterResult{User: user}
	if err := s.mail.SendOTP(ctx, notify.OTP{To: email, Code: code, TTL: s.otpTTL()}); err != nil {
		s.logger.Warn("otp dispatch failed after registration", "user_id", user.ID, "error", err)
		result.Warning = "OTP email could not be delivered. Use resend-otp to request a new code."
	}
	return result, nil
}

// Login authenticates a verified user and mints a session token. Unknown
// emails and wrong passwords produce the same error so accounts cannot be
// enumerated.
func (s Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !user.IsVerified {
		return "", ErrNotVerified
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := jwtpkg.GenerateToken(user.ID, user.Email, s.cfg.JWTSecret, s.sessionTTL())
	if err != nil {
		return "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// CurrentUser loads the account behind an already validated token.
func (s Service) CurrentUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s Service) sessionTTL() time.Duration {
	if s.cfg.SessionTokenTTL <= 0 {
		return time.Hour
	}
	return s.cfg.SessionTokenTTL
}

func (s Service) otpTTL() time.Duration {
	if s.cfg.OTPTTL <= 0 {
		return 5 * time.Minute
	}
	return s.cfg.OTPTTL
}

func (s Service) otpMaxAttempts() int {
	if s.cfg.OTPMaxAttempts <= 0 {
		return 5
	}
	return s.cfg.OTPMaxAttempts
}
