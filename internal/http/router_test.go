package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/stepflow/signup-api/internal/config"
	"github.com/stepflow/signup-api/internal/crypto"
	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/notify"
	"github.com/stepflow/signup-api/internal/repository"
	"github.com/stepflow/signup-api/internal/service/auth"
	"github.com/stepflow/signup-api/internal/service/profile"
)

func newTestRouter(t *testing.T, repo userRepoMock) *Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{
		JWTSecret:       "router-test-secret",
		SessionTokenTTL: time.Hour,
		OTPTTL:          5 * time.Minute,
		OTPMaxAttempts:  5,
	}
	authSvc := auth.New(repo, &senderMock{}, &senderMock{}, logger, cfg)
	profileSvc := profile.New(repo, logger)
	router := NewRouter(logger, authSvc, profileSvc, NewMemoryRateLimiter(), nil)
	t.Cleanup(router.Close)
	return router
}

func doRequest(router *Router, method, path, body, remoteAddr, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestRegisterEndpoint(t *testing.T) {
	repo := userRepoMock{
		createFunc: func(context.Context, *domain.User) error { return nil },
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/register",
		`{"email":"jane@example.com","password":"Testing123!","confirmPassword":"Testing123!"}`, "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "User registered successfully. OTP sent to email for verification." {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := userRepoMock{
		createFunc: func(context.Context, *domain.User) error { return repository.ErrConflict },
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/register",
		`{"email":"jane@example.com","password":"pass","confirmPassword":"pass"}`, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "User already exists" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestRegisterRejectsInvalidJSON(t *testing.T) {
	router := newTestRouter(t, userRepoMock{})

	rec := doRequest(router, http.MethodPost, "/api/auth/register", "{not json", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, userRepoMock{})

	rec := doRequest(router, http.MethodGet, "/api/auth/register", "", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestLoginUnverifiedUser(t *testing.T) {
	hashed, err := crypto.HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hashed}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"email":"jane@example.com","password":"Testing123!"}`, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Please verify your email before logging in." {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestLoginReturnsToken(t *testing.T) {
	hashed, err := crypto.HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hashed, IsVerified: true}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"email":"jane@example.com","password":"Testing123!"}`, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Login successful" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response")
	}
}

func TestVerifyOTPEndpoint(t *testing.T) {
	repo := userRepoMock{
		claimOTPFunc: func(_ context.Context, email, code string) (*domain.User, error) {
			if code != "123456" {
				return nil, repository.ErrInvalidArgument
			}
			return &domain.User{ID: "user-1", Email: email, IsVerified: true}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/verify-otp",
		`{"email":"jane@example.com","otp":"123456"}`, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["message"] != "Email verified successfully" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	code := "123456"
	expired := time.Now().Add(-time.Minute)
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, OTP: &code, OTPExpiresAt: &expired}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/verify-otp",
		`{"email":"jane@example.com","otp":"123456"}`, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "OTP expired" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestSaveNameEndpoint(t *testing.T) {
	repo := userRepoMock{
		updateNameFunc: func(_ context.Context, email, firstName, lastName string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, FirstName: &firstName, LastName: &lastName}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/name",
		`{"email":"jane@example.com","firstName":"Jane","lastName":"Doe"}`, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Name saved successfully" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["firstName"] != "Jane" {
		t.Fatalf("expected sanitized user payload, got %v", body["user"])
	}
}

func TestSaveNameUnknownUser(t *testing.T) {
	repo := userRepoMock{
		updateNameFunc: func(context.Context, string, string, string) (*domain.User, error) {
			return nil, repository.ErrNotFound
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/name",
		`{"email":"nobody@example.com","firstName":"Jane","lastName":"Doe"}`, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "User not found" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestMeRequiresToken(t *testing.T) {
	router := newTestRouter(t, userRepoMock{})

	rec := doRequest(router, http.MethodGet, "/api/auth/me", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Access denied, no token provided" {
		t.Fatalf("unexpected message: %v", body["message"])
	}

	rec = doRequest(router, http.MethodGet, "/api/auth/me", "", "", "garbage-token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Invalid or expired token" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestMeReturnsProfile(t *testing.T) {
	hashed, err := crypto.HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hashed, IsVerified: true}, nil
		},
	}
	router := newTestRouter(t, repo)

	rec := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"email":"jane@example.com","password":"Testing123!"}`, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)

	rec = doRequest(router, http.MethodGet, "/api/auth/me", "", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "jane@example.com" {
		t.Fatalf("unexpected user payload: %v", body["user"])
	}
	if _, exposed := user["passwordHash"]; exposed {
		t.Fatalf("credential fields must not leak")
	}
}

func TestRegisterRateLimited(t *testing.T) {
	repo := userRepoMock{
		createFunc: func(context.Context, *domain.User) error { return nil },
	}
	router := newTestRouter(t, repo)

	addr := "203.0.113.7:4321"
	for i := 0; i < rateLimitRegister; i++ {
		body := fmt.Sprintf(`{"email":"jane%d@example.com","password":"pass","confirmPassword":"pass"}`, i)
		rec := doRequest(router, http.MethodPost, "/api/auth/register", body, addr, "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rec.Code)
		}
	}
	rec := doRequest(router, http.MethodPost, "/api/auth/register",
		`{"email":"late@example.com","password":"pass","confirmPassword":"pass"}`, addr, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatalf("expected rate limit headers")
	}
}

func TestHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{JWTSecret: "router-test-secret"}
	authSvc := auth.New(userRepoMock{}, &senderMock{}, &senderMock{}, logger, cfg)
	profileSvc := profile.New(userRepoMock{}, logger)
	healthy := func(context.Context) error { return nil }
	router := NewRouter(logger, authSvc, profileSvc, NewMemoryRateLimiter(), healthy)
	defer router.Close()

	rec := doRequest(router, http.MethodGet, "/healthz", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

type senderMock struct {
	sent []notify.OTP
}

func (m *senderMock) SendOTP(_ context.Context, msg notify.OTP) error {
	m.sent = append(m.sent, msg)
	return nil
}

type userRepoMock struct {
	createFunc     func(context.Context, *domain.User) error
	getByEmailFunc func(context.Context, string) (*domain.User, error)
	claimOTPFunc   func(context.Context, string, string) (*domain.User, error)
	updateNameFunc func(context.Context, string, string, string) (*domain.User, error)
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m userRepoMock) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) GetUserByID(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (m userRepoMock) SetOTP(context.Context, string, string, time.Time) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (m userRepoMock) ClaimOTP(ctx context.Context, email, code string) (*domain.User, error) {
	if m.claimOTPFunc != nil {
		return m.claimOTPFunc(ctx, email, code)
	}
	return nil, repository.ErrInvalidArgument
}

func (m userRepoMock) ClaimMobileOTP(context.Context, string, string) (*domain.User, error) {
	return nil, repository.ErrInvalidArgument
}

func (m userRepoMock) RecordOTPMismatch(context.Context, string, int) (int, error) {
	return 0, repository.ErrInvalidArgument
}

func (m userRepoMock) UpdateName(ctx context.Context, email, firstName, lastName string) (*domain.User, error) {
	if m.updateNameFunc != nil {
		return m.updateNameFunc(ctx, email, firstName, lastName)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) UpdateZipCode(context.Context, string, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (m userRepoMock) UpdateMobile(context.Context, string, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}
