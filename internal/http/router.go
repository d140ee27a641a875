package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepflow/signup-api/internal/service/auth"
	"github.com/stepflow/signup-api/internal/service/profile"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	profile  profile.Service
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	rateLimitOTPVerify = 12
	rateLimitOTPResend = 5
	rateLimitProfile   = 60
	rateLimitUserRead  = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, profileSvc profile.Service, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		profile:  profileSvc,
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/auth/register", r.audit(r.withRateLimit("register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister)))
	r.mux.HandleFunc("/api/auth/login", r.audit(r.withRateLimit("login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/auth/verify-otp", r.audit(r.withRateLimit("verify-otp", rateLimitOTPVerify, rateWindowDefault, rateLimitKeyIP, r.handleVerifyOTP)))
	r.mux.HandleFunc("/api/auth/resend-otp", r.audit(r.withRateLimit("resend-otp", rateLimitOTPResend, rateWindowDefault, rateLimitKeyIP, r.handleResendOTP)))
	r.mux.HandleFunc("/api/auth/name", r.audit(r.withRateLimit("name", rateLimitProfile, rateWindowDefault, rateLimitKeyIP, r.handleSaveName)))
	r.mux.HandleFunc("/api/auth/zip", r.audit(r.withRateLimit("zip", rateLimitProfile, rateWindowDefault, rateLimitKeyIP, r.handleSaveZip)))
	r.mux.HandleFunc("/api/auth/mobile", r.audit(r.withRateLimit("mobile", rateLimitOTPResend, rateWindowDefault, rateLimitKeyIP, r.handleSaveMobile)))
	r.mux.HandleFunc("/api/auth/verify-mobile", r.audit(r.withRateLimit("verify-mobile", rateLimitOTPVerify, rateWindowDefault, rateLimitKeyIP, r.handleVerifyMobile)))
	r.mux.HandleFunc("/api/auth/me", r.audit(r.handlerAuthRate("me", rateLimitUserRead, rateWindowDefault, r.handleMe)))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := r.auth.Register(req.Context(), payload.Email, payload.Password, payload.ConfirmPassword)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	body := map[string]any{
		"message": "User registered successfully. OTP sent to email for verification.",
	}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}
	writeJSON(w, http.StatusCreated, body)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
	})
}

func (r *Router) handleVerifyOTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := r.auth.VerifyEmailOTP(req.Context(), payload.Email, payload.OTP); err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (r *Router) handleResendOTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	warning, err := r.auth.ResendOTP(req.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, auth.ErrAlreadyVerified) {
			writeError(w, http.StatusBadRequest, "Email already verified. No need to resend OTP.")
			return
		}
		r.writeDomainError(w, req, err)
		return
	}
	body := map[string]any{"message": "New OTP sent to your email."}
	if warning != "" {
		body["warning"] = warning
	}
	writeJSON(w, http.StatusOK, body)
}

func (r *Router) handleSaveName(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.profile.SaveName(req.Context(), payload.Email, payload.FirstName, payload.LastName)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Name saved successfully",
		"user":    userPayload(user),
	})
}

func (r *Router) handleSaveZip(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email   string `json:"email"`
		ZipCode string `json:"zipCode"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.profile.SaveZipCode(req.Context(), payload.Email, payload.ZipCode)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Zip Code saved successfully",
		"user":    userPayload(user),
	})
}

func (r *Router) handleSaveMobile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email  string `json:"email"`
		Mobile string `json:"mobile"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Mobile) == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	user, err := r.auth.StartMobileVerification(req.Context(), payload.Email, payload.Mobile)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "OTP generated (check console)",
		"user":    userPayload(user),
	})
}

func (r *Router) handleVerifyMobile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.VerifyMobileOTP(req.Context(), payload.Email, payload.OTP)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Mobile verified",
		"user":    userPayload(user),
	})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile fetch", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	user, err := r.auth.CurrentUser(req.Context(), info.Email)
	if err != nil {
		r.writeDomainError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userPayload(user)})
}

// writeDomainError maps service errors to HTTP responses. Unexpected errors
// are logged with detail but never leak past a generic message.
func (r *Router) writeDomainError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "All fields are required")
	case errors.Is(err, auth.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "Passwords do not match")
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, auth.ErrNotVerified):
		writeError(w, http.StatusBadRequest, "Please verify your email before logging in.")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusBadRequest, "User not found")
	case errors.Is(err, auth.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "User already verified")
	case errors.Is(err, auth.ErrNoPendingOTP):
		writeError(w, http.StatusBadRequest, "No OTP found. Please register again.")
	case errors.Is(err, auth.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, "OTP expired")
	case errors.Is(err, auth.ErrOTPMismatch):
		writeError(w, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, http.StatusBadRequest, "Too many incorrect attempts. Request a new OTP.")
	case errors.Is(err, profile.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "All fields are required")
	case errors.Is(err, profile.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
