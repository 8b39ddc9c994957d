package authkit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authkit-go/authkit/cookie"
	"github.com/authkit-go/authkit/internal/rate"
	"github.com/authkit-go/authkit/internal/version"
	"github.com/authkit-go/authkit/password"
	"github.com/authkit-go/authkit/token"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build, which validates the configuration and wires all components.
type Builder struct {
	config   Config
	provider UserProvider
	redis    redis.UniversalClient
	logger   *slog.Logger
	sink     AuditSink

	// clock overrides the engine clock in tests.
	clock func() time.Time

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserProvider sets the account backend. Required.
func (b *Builder) WithUserProvider(p UserProvider) *Builder {
	b.provider = p
	return b
}

// WithRedis supplies the client backing the version cache and, when
// Throttle.Enabled is set, the rate limiter. Optional: without it the
// version gate always consults the provider.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the operational logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink enables asynchronous audit dispatching into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and returns a ready Engine. Every
// configuration defect is reported here, wrapped in [ErrConfig]; nothing
// is deferred to request time.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authkit: builder already consumed")
	}
	if b.provider == nil {
		return nil, fmt.Errorf("authkit: %w: a UserProvider is required", ErrConfig)
	}

	rc, err := resolveConfig(b.config)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     rc.secret,
		AccessTTL:  rc.accessTTL,
		RefreshTTL: rc.refreshTTL,
		Issuer:     rc.issuer,
		Now:        b.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("authkit: %w: %w", ErrConfig, err)
	}

	hasher, err := password.NewHasher(rc.password)
	if err != nil {
		return nil, fmt.Errorf("authkit: %w: %w", ErrConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:         rc,
		tokens:         tokens,
		hasher:         hasher,
		cookies:        cookie.NewStore(tokens, rc.access, rc.refresh),
		provider:       b.provider,
		audit:          newAuditDispatcher(b.config.Audit, b.sink),
		metrics:        newMetrics(),
		logger:         logger,
		upgradeOnLogin: b.config.Password.UpgradeOnLogin,
	}

	if b.redis != nil {
		cacheTTL := b.config.VersionCacheTTL
		if cacheTTL == 0 {
			cacheTTL = 5 * time.Minute
		}
		if cacheTTL > 0 {
			e.versions = version.New(b.redis, b.config.RedisPrefix, cacheTTL)
		}

		if b.config.Throttle.Enabled {
			e.limiter = rate.New(b.redis, b.config.RedisPrefix, rate.Config{
				ThrottleByIP:       b.config.Throttle.ThrottleByIP,
				MaxLoginAttempts:   b.config.Throttle.MaxLoginAttempts,
				LoginCooldown:      b.config.Throttle.LoginCooldown,
				MaxRefreshAttempts: b.config.Throttle.MaxRefreshAttempts,
				RefreshCooldown:    b.config.Throttle.RefreshCooldown,
			})
		}
	}

	b.built = true
	return e, nil
}
