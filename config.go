package sxpauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sxpoptimizer/sxpauth/mailer"
	"github.com/sxpoptimizer/sxpauth/password"
)

// Config is the full runtime configuration. Build one with DefaultConfig or
// LoadConfig; treat it as immutable once handed to a Builder.
type Config struct {
	Redis    RedisConfig     `envPrefix:"REDIS_"`
	Tracking TrackingConfig  `envPrefix:"TRACKING_"`
	Lockout  LockoutConfig   `envPrefix:"LOCKOUT_"`
	Tokens   TokenConfig     `envPrefix:"TOKEN_"`
	Session  SessionConfig   `envPrefix:"SESSION_"`
	Password password.Config `envPrefix:"PASSWORD_"`
	Signup   SignupConfig    `envPrefix:"SIGNUP_"`
	Mail     mailer.Config   `envPrefix:"MAIL_"`
	Audit    AuditConfig     `envPrefix:"AUDIT_"`
	HTTP     HTTPConfig      `envPrefix:"HTTP_"`
	Log      LogConfig       `envPrefix:"LOG_"`
}

/*
====================================
SECTIONS
====================================
*/

// RedisConfig locates the key-value store. An empty Addr makes the daemon
// start an in-process store instead.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"sxp:"`
}

type TrackingConfig struct {
	Retention                  time.Duration `env:"RETENTION" envDefault:"2160h"`
	SuspiciousFailureThreshold int           `env:"SUSPICIOUS_FAILURES" envDefault:"3"`
	SuspiciousWindow           time.Duration `env:"SUSPICIOUS_WINDOW" envDefault:"5m"`
	MaxDerivedDepth            int           `env:"MAX_DERIVED_DEPTH" envDefault:"1"`
	StatsWindow                time.Duration `env:"STATS_WINDOW" envDefault:"24h"`
}

type LockoutConfig struct {
	Threshold int           `env:"THRESHOLD" envDefault:"5"`
	Window    time.Duration `env:"WINDOW" envDefault:"15m"`
}

type TokenConfig struct {
	VerificationTTL time.Duration `env:"VERIFICATION_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"RESET_TTL" envDefault:"1h"`
}

// SessionConfig controls the bearer tokens issued at login. Secret is the
// HMAC key for hs256, or a PEM ed25519 private key for ed25519.
type SessionConfig struct {
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
	SigningMethod string        `env:"SIGNING_METHOD" envDefault:"hs256"`
	Secret        string        `env:"SECRET"`
	Issuer        string        `env:"ISSUER" envDefault:"sxpauth"`
}

type SignupConfig struct {
	AutoLogin    bool `env:"AUTO_LOGIN" envDefault:"true"`
	RequireTerms bool `env:"REQUIRE_TERMS" envDefault:"true"`
}

type AuditConfig struct {
	Enabled    bool `env:"ENABLED" envDefault:"true"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"1024"`
	DropIfFull bool `env:"DROP_IF_FULL" envDefault:"true"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// AdminToken guards the /admin routes; empty disables them.
	AdminToken string `env:"ADMIN_TOKEN"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

/*
====================================
DEFAULTS AND LOADING
====================================
*/

// DefaultConfig returns the values LoadConfig produces from an empty
// environment.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{Prefix: "sxp:"},
		Tracking: TrackingConfig{
			Retention:                  90 * 24 * time.Hour,
			SuspiciousFailureThreshold: 3,
			SuspiciousWindow:           5 * time.Minute,
			MaxDerivedDepth:            1,
			StatsWindow:                24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Tokens: TokenConfig{
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "sxpauth",
		},
		Password: password.DefaultConfig(),
		Signup: SignupConfig{
			AutoLogin:    true,
			RequireTerms: true,
		},
		Mail: mailer.Config{
			SenderEmail:  "no-reply@sxp.local",
			SupportEmail: "support@sxp.local",
			BaseURL:      "http://localhost:8080",
			AppName:      "SXP Optimizer",
			LogFallback:  true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// EnvPrefix is prepended to every variable LoadConfig reads, e.g.
// SXP_LOCKOUT_THRESHOLD.
const EnvPrefix = "SXP_"

// LoadConfig reads the optional .env files, then the environment. Missing
// .env files are not an error.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, file := range envFiles {
			if err := godotenv.Load(file); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", file, err)
			}
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Tracking.Retention <= 0 {
		add("Tracking Retention must be > 0")
	}
	if c.Tracking.SuspiciousFailureThreshold <= 0 {
		add("Tracking SuspiciousFailureThreshold must be > 0")
	}
	if c.Tracking.SuspiciousWindow <= 0 {
		add("Tracking SuspiciousWindow must be > 0")
	}
	if c.Tracking.MaxDerivedDepth < 0 {
		add("Tracking MaxDerivedDepth must be >= 0")
	}
	if c.Tracking.StatsWindow <= 0 {
		add("Tracking StatsWindow must be > 0")
	}

	if c.Lockout.Threshold <= 0 {
		add("Lockout Threshold must be > 0")
	}
	if c.Lockout.Window <= 0 {
		add("Lockout Window must be > 0")
	}

	if c.Tokens.VerificationTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		add("Token TTLs must be > 0")
	}

	if c.Session.TTL <= 0 {
		add("Session TTL must be > 0")
	}
	switch strings.ToLower(c.Session.SigningMethod) {
	case "hs256":
		if len(c.Session.Secret) < 32 {
			add("Session Secret must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if c.Session.Secret == "" {
			add("Session Secret must hold an ed25519 private key")
		}
	default:
		add("unsupported Session SigningMethod %q", c.Session.SigningMethod)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		add("Audit BufferSize must be > 0 when enabled")
	}

	if c.Mail.BaseURL == "" {
		add("Mail BaseURL is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("unsupported Log Level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("unsupported Log Format %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
