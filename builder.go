package sxpauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
	"github.com/sxpoptimizer/sxpauth/jwt"
	"github.com/sxpoptimizer/sxpauth/mailer"
	"github.com/sxpoptimizer/sxpauth/metrics"
	"github.com/sxpoptimizer/sxpauth/password"
)

const tracerName = "github.com/sxpoptimizer/sxpauth"

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	mailer    Mailer
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time
	registry  *prometheus.Registry

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer overrides the mailer built from Config.Mail.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink forwards every recorded event to sink through an async
// dispatcher, in addition to the persisted event log.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsRegistry registers the engine's collectors on reg instead of a
// private registry.
func (b *Builder) WithMetricsRegistry(reg *prometheus.Registry) *Builder {
	b.registry = reg
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cfg,
		logger: logger,
		now:    now,
		tracer: otel.Tracer(tracerName),
	}

	engine.users = stores.NewUserStore(b.redis, cfg.Redis.Prefix)
	engine.tokens = stores.NewTokenStore(b.redis, cfg.Redis.Prefix, stores.TokenConfig{
		VerificationTTL: cfg.Tokens.VerificationTTL,
		ResetTTL:        cfg.Tokens.ResetTTL,
	}, now)
	engine.sessions = stores.NewSessionStore(b.redis, cfg.Redis.Prefix)

	if cfg.Audit.Enabled && b.auditSink != nil {
		engine.audit = audit.NewDispatcher(audit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}
	engine.metrics = metrics.New(b.registry, engine.audit.Dropped)

	engine.tracker = tracking.New(tracking.Config{
		Retention:                  cfg.Tracking.Retention,
		LockoutThreshold:           cfg.Lockout.Threshold,
		SuspiciousFailureThreshold: cfg.Tracking.SuspiciousFailureThreshold,
		SuspiciousWindow:           cfg.Tracking.SuspiciousWindow,
		MaxDerivedDepth:            cfg.Tracking.MaxDerivedDepth,
	}, tracking.Options{
		Store:       tracking.NewStore(b.redis, cfg.Redis.Prefix),
		Dispatcher:  engine.audit,
		Logger:      logger,
		Now:         now,
		Environment: requestEnvironment,
		Observe:     engine.metrics.ObserveEvent,
	})
	engine.tracker.Load(context.Background())

	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.Session.SigningMethod)),
		PrivateKey:    []byte(cfg.Session.Secret),
		Issuer:        cfg.Session.Issuer,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	if b.mailer != nil {
		engine.mailer = b.mailer
	} else {
		svc, err := mailer.New(cfg.Mail, logger)
		if err != nil {
			return nil, err
		}
		engine.mailer = svc
	}

	b.built = true

	return engine, nil
}

// requestEnvironment prefers the client session id, then the request id.
// With neither, the tracker falls back to its process-wide id, which only
// suits a single embedded caller.
func requestEnvironment(ctx context.Context) tracking.Environment {
	sid := SessionIDFromContext(ctx)
	if sid == "" {
		if rid := RequestIDFromContext(ctx); rid != "" {
			sid = "request_" + rid
		}
	}
	return tracking.Environment{
		IPAddress: ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Timezone:  TimezoneFromContext(ctx),
		SessionID: sid,
	}
}
