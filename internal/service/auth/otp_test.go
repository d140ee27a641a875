package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/repository"
)

func pendingUser(code string, expiresAt time.Time) *domain.User {
	return &domain.User{
		ID:           "user-1",
		Email:        "jane@example.com",
		OTP:          &code,
		OTPExpiresAt: &expiresAt,
	}
}

func TestVerifyEmailOTPClaimsPendingCode(t *testing.T) {
	repo := userRepoMock{
		claimOTPFunc: func(_ context.Context, email, code string) (*domain.User, error) {
			if email != "jane@example.com" || code != "123456" {
				t.Fatalf("unexpected claim arguments: %s %s", email, code)
			}
			return &domain.User{ID: "user-1", Email: email, IsVerified: true}, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	user, err := svc.VerifyEmailOTP(context.Background(), "jane@example.com", " 123456 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.IsVerified {
		t.Fatalf("expected verified user returned")
	}
}

func TestVerifyEmailOTPExpiredBeatsMismatch(t *testing.T) {
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return pendingUser("123456", time.Now().Add(-time.Minute)), nil
		},
		recordMismatchFunc: func(context.Context, string, int) (int, error) {
			t.Fatalf("expired code must not count as a mismatch")
			return 0, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	if _, err := svc.VerifyEmailOTP(context.Background(), "jane@example.com", "999999"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestVerifyEmailOTPMismatchCountsAttempt(t *testing.T) {
	recorded := 0
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return pendingUser("123456", time.Now().Add(time.Minute)), nil
		},
		recordMismatchFunc: func(_ context.Context, _ string, maxAttempts int) (int, error) {
			if maxAttempts != 5 {
				t.Fatalf("unexpected attempt cap: %d", maxAttempts)
			}
			recorded++
			return recorded, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	if _, err := svc.VerifyEmailOTP(context.Background(), "jane@example.com", "000000"); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
	if recorded != 1 {
		t.Fatalf("expected one recorded mismatch, got %d", recorded)
	}
}

func TestVerifyEmailOTPLockoutAfterMaxAttempts(t *testing.T) {
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return pendingUser("123456", time.Now().Add(time.Minute)), nil
		},
		recordMismatchFunc: func(_ context.Context, _ string, maxAttempts int) (int, error) {
			return maxAttempts, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	if _, err := svc.VerifyEmailOTP(context.Background(), "jane@example.com", "000000"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestVerifyEmailOTPFailureClassification(t *testing.T) {
	cases := []struct {
		name string
		user *domain.User
		err  error
		want error
	}{
		{
			name: "unknown user",
			err:  repository.ErrNotFound,
			want: ErrUserNotFound,
		},
		{
			name: "already verified",
			user: &domain.User{ID: "user-1", IsVerified: true},
			want: ErrAlreadyVerified,
		},
		{
			name: "no pending code",
			user: &domain.User{ID: "user-1"},
			want: ErrNoPendingOTP,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := userRepoMock{
				getByEmailFunc: func(context.Context, string) (*domain.User, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return tc.user, nil
				},
			}
			svc := newTestService(repo, &senderMock{}, nil)
			if _, err := svc.VerifyEmailOTP(context.Background(), "jane@example.com", "123456"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVerifyMobileOTPFlipsMobileFlag(t *testing.T) {
	repo := userRepoMock{
		claimMobileOTPFunc: func(_ context.Context, email, code string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, IsMobileVerified: true}, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	user, err := svc.VerifyMobileOTP(context.Background(), "jane@example.com", "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.IsMobileVerified {
		t.Fatalf("expected mobile verified flag set")
	}
}

func TestResendOTPReplacesPendingCode(t *testing.T) {
	var storedCode string
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return pendingUser("111111", time.Now().Add(time.Minute)), nil
		},
		setOTPFunc: func(_ context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
			storedCode = code
			if time.Until(expiresAt) <= 0 {
				t.Fatalf("expected new expiry in the future")
			}
			return pendingUser(code, expiresAt), nil
		},
	}
	sender := &senderMock{}
	svc := newTestService(repo, sender, nil)
	svc.newCode = func() (string, error) { return "654321", nil }

	warning, err := svc.ResendOTP(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %q", warning)
	}
	if storedCode != "654321" {
		t.Fatalf("expected replacement code stored, got %q", storedCode)
	}
	if len(sender.sent) != 1 || !sender.sent[0].Reissued {
		t.Fatalf("expected one reissued mail, got %+v", sender.sent)
	}
}

func TestResendOTPAlreadyVerified(t *testing.T) {
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, IsVerified: true}, nil
		},
	}
	svc := newTestService(repo, &senderMock{}, nil)

	if _, err := svc.ResendOTP(context.Background(), "jane@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestResendOTPMailFailureReturnsWarning(t *testing.T) {
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return pendingUser("111111", time.Now().Add(time.Minute)), nil
		},
		setOTPFunc: func(_ context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
			return pendingUser(code, expiresAt), nil
		},
	}
	svc := newTestService(repo, &senderMock{err: errors.New("smtp down")}, nil)

	warning, err := svc.ResendOTP(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("dispatch failure must not fail resend: %v", err)
	}
	if warning == "" {
		t.Fatalf("expected warning when mail fails")
	}
}

func TestStartMobileVerificationIssuesDevOTP(t *testing.T) {
	repo := userRepoMock{
		updateMobileFunc: func(_ context.Context, email, mobile string) (*domain.User, error) {
			if mobile != "+15550001111" {
				t.Fatalf("unexpected mobile: %s", mobile)
			}
			return &domain.User{ID: "user-1", Email: email, Mobile: &mobile}, nil
		},
		setOTPFunc: func(_ context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
			return pendingUser(code, expiresAt), nil
		},
	}
	sms := &senderMock{}
	svc := newTestService(repo, &senderMock{}, sms)
	svc.newCode = func() (string, error) { return "777777", nil }

	if _, err := svc.StartMobileVerification(context.Background(), "jane@example.com", "+15550001111"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.sent) != 1 || sms.sent[0].To != "+15550001111" || sms.sent[0].Code != "777777" {
		t.Fatalf("expected dev otp on sms channel, got %+v", sms.sent)
	}
}

func TestRandomOTPCodeFormat(t *testing.T) {
	for i := 0; i < 32; i++ {
		code, err := randomOTPCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, ch := range code {
			if ch < '0' || ch > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
	}
}
