package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	InviteConflictKeep   = "keep"
	InviteConflictDelete = "delete"

	EmailProviderResend = "resend"
	EmailProviderSES    = "ses"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string

	// Browser origins allowed to call the API with credentials
	CORSAllowedOrigins []string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret                string
	JWTExpiry                time.Duration
	BcryptCost               int
	TokenEmailVerifyExpiry   time.Duration
	TokenPasswordResetExpiry time.Duration
	TokenInviteExpiry        time.Duration
	InviteConflictPolicy     string // "keep" or "delete"

	// Rate limiting (auth actions)
	RateLimitAuthRequests int
	RateLimitAuthWindow   time.Duration
	RedisURL              string // Optional: shared limiter across instances

	// Email
	EmailProvider string // "resend" or "ses"
	EmailFrom     string
	ResendAPIKey  string
	AWSRegion     string
	EmailTimeout  time.Duration

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "Hearth Budget"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // Required: base URL for email links
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),

		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/budget.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Security
		JWTSecret:                envRequired("JWT_SECRET"),
		JWTExpiry:                envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days
		BcryptCost:               envInt("BCRYPT_COST", 10),
		TokenEmailVerifyExpiry:   envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour),  // 24 hours
		TokenPasswordResetExpiry: envDuration("TOKEN_PASSWORD_RESET_EXPIRY", 1*time.Hour), // 1 hour
		TokenInviteExpiry:        envDuration("TOKEN_INVITE_EXPIRY", 168*time.Hour),       // 7 days
		InviteConflictPolicy:     envString("INVITE_CONFLICT_POLICY", InviteConflictKeep),

		// Rate limiting
		RateLimitAuthRequests: envInt("RATE_LIMIT_AUTH_REQUESTS", 5),
		RateLimitAuthWindow:   envDuration("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
		RedisURL:              envString("REDIS_URL", ""),

		// Email (RESEND_API_KEY optional in development, required in production with resend)
		EmailProvider: envString("EMAIL_PROVIDER", EmailProviderResend),
		EmailFrom:     envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey:  envString("RESEND_API_KEY", ""),
		AWSRegion:     envString("AWS_REGION", "us-east-1"),
		EmailTimeout:  envDuration("EMAIL_TIMEOUT", 10*time.Second),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	if cfg.InviteConflictPolicy != InviteConflictKeep && cfg.InviteConflictPolicy != InviteConflictDelete {
		slog.Warn("config invalid invite conflict policy, using default",
			"value", cfg.InviteConflictPolicy, "default", InviteConflictKeep)
		cfg.InviteConflictPolicy = InviteConflictKeep
	}

	if cfg.EmailProvider != EmailProviderResend && cfg.EmailProvider != EmailProviderSES {
		slog.Warn("config invalid email provider, using default",
			"value", cfg.EmailProvider, "default", EmailProviderResend)
		cfg.EmailProvider = EmailProviderResend
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to run in log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.EmailProvider == EmailProviderResend && cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

// envList splits a comma separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

// envInt reads a positive integer; anything else falls back to def.
func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

// envDuration reads a positive duration; anything else falls back to def.
func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether session cookies carry the Secure flag.
// COOKIE_SECURE overrides the APP_ENV based default.
func (c *Config) SecureCookies() bool {
	return envBool("COOKIE_SECURE", c.IsProduction())
}
