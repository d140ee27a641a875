package config

import "time"

// APIConfig holds runtime configuration for the signup API.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	SessionTokenTTL    time.Duration
	OTPTTL             time.Duration
	OTPMaxAttempts     int
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	MailFrom           string
	MailRetryAttempts  int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":5001"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://signup:signup@db:5432/signup?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		SessionTokenTTL:    time.Duration(GetInt("SESSION_TOKEN_TTL_MIN", 60)) * time.Minute,
		OTPTTL:             time.Duration(GetInt("OTP_TTL_MIN", 5)) * time.Minute,
		OTPMaxAttempts:     GetInt("OTP_MAX_ATTEMPTS", 5),
		SMTPHost:           GetString("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:           GetInt("SMTP_PORT", 587),
		SMTPUsername:       GetString("SMTP_USERNAME", ""),
		SMTPPassword:       GetString("SMTP_PASSWORD", ""),
		MailFrom:           GetString("MAIL_FROM", "MyApp <no-reply@myapp.dev>"),
		MailRetryAttempts:  GetInt("MAIL_RETRY_ATTEMPTS", 3),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
