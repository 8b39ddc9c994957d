package authkit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/authkit-go/authkit/cookie"
	"github.com/authkit-go/authkit/password"
)

// Config is the full, explicit configuration of an [Engine]. It is
// validated once by [Builder.Build]; an invalid configuration fails fast
// before any token can be issued.
//
// TTL strings use the form "<integer><unit>" with unit one of s, m, h, d.
type Config struct {
	// Secret is the raw HS256 key. At least 32 bytes.
	Secret string `env:"AUTHKIT_SECRET"`
	// ExpiresIn is the access-token lifetime. Default "15m".
	ExpiresIn string `env:"AUTHKIT_EXPIRES_IN"`
	// RefreshExpiresIn is the refresh-token lifetime. Default "7d".
	RefreshExpiresIn string `env:"AUTHKIT_REFRESH_EXPIRES_IN"`
	// Algorithm names the signing scheme. Only "HS256" is supported.
	Algorithm string `env:"AUTHKIT_ALGORITHM"`
	// Issuer is stamped into the iss claim. Empty falls back to "authkit".
	Issuer string `env:"AUTHKIT_ISSUER"`

	// CookieName is the access cookie name. Default "authkit_token".
	CookieName string `env:"AUTHKIT_COOKIE_NAME"`
	// RefreshCookieName is the refresh cookie name. Default "authkit_refresh".
	RefreshCookieName string `env:"AUTHKIT_REFRESH_COOKIE_NAME"`
	// Cookie holds the access cookie attributes.
	Cookie CookieConfig `envPrefix:"AUTHKIT_COOKIE_"`
	// RefreshCookie overrides refresh cookie attributes. Nil derives them
	// from Cookie with MaxAge stretched to the refresh lifetime.
	RefreshCookie *CookieConfig

	// Password holds Argon2id cost parameters.
	Password PasswordConfig
	// Throttle enables Redis-backed login/refresh rate limiting. Ignored
	// unless a Redis client is supplied to the builder.
	Throttle ThrottleConfig
	// Audit controls the asynchronous audit dispatcher.
	Audit AuditConfig

	// RedisPrefix namespaces authkit keys in Redis. Default "ak".
	RedisPrefix string `env:"AUTHKIT_REDIS_PREFIX"`
	// VersionCacheTTL bounds staleness of the Redis version cache.
	// Default 5 minutes; zero keeps the default, negative disables caching.
	VersionCacheTTL time.Duration `env:"AUTHKIT_VERSION_CACHE_TTL"`
}

// CookieConfig mirrors the settable attributes of one cookie. MaxAge zero
// derives the value from the matching token lifetime.
type CookieConfig struct {
	HTTPOnly bool   `env:"HTTPONLY"`
	Secure   bool   `env:"SECURE"`
	SameSite string `env:"SAMESITE"` // "strict", "lax" (default), or "none"
	MaxAge   int    `env:"MAXAGE"`
	Path     string `env:"PATH"`
	Domain   string `env:"DOMAIN"`
}

// PasswordConfig holds Argon2id parameters plus the upgrade-on-login switch.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// ThrottleConfig tunes the fixed-window rate limiter.
type ThrottleConfig struct {
	Enabled            bool
	ThrottleByIP       bool
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	MaxRefreshAttempts int
	RefreshCooldown    time.Duration
}

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the documented defaults. The Secret is left empty
// on purpose: there is no acceptable default for a signing key.
func DefaultConfig() Config {
	return Config{
		ExpiresIn:         "15m",
		RefreshExpiresIn:  "7d",
		Algorithm:         "HS256",
		CookieName:        "authkit_token",
		RefreshCookieName: "authkit_refresh",
		Cookie: CookieConfig{
			HTTPOnly: true,
			SameSite: "lax",
			Path:     "/",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Throttle: ThrottleConfig{
			MaxLoginAttempts:   10,
			LoginCooldown:      5 * time.Minute,
			MaxRefreshAttempts: 30,
			RefreshCooldown:    time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		RedisPrefix:     "ak",
		VersionCacheTTL: 5 * time.Minute,
	}
}

// ConfigFromEnv starts from DefaultConfig and overlays AUTHKIT_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("authkit: %w: %w", ErrConfig, err)
	}
	return cfg, nil
}

// resolvedConfig is the validated, strongly typed form the Engine runs on.
type resolvedConfig struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	access     cookie.Options
	refresh    cookie.Options
	password   password.Config
}

func resolveConfig(cfg Config) (resolvedConfig, error) {
	var rc resolvedConfig

	if len(cfg.Secret) < 32 {
		return rc, fmt.Errorf("authkit: %w: secret must be at least 32 bytes", ErrConfig)
	}
	rc.secret = []byte(cfg.Secret)

	if !strings.EqualFold(cfg.Algorithm, "HS256") {
		return rc, fmt.Errorf("authkit: %w: unsupported algorithm %q", ErrConfig, cfg.Algorithm)
	}

	var err error
	if rc.accessTTL, err = ParseTTL(cfg.ExpiresIn); err != nil {
		return rc, fmt.Errorf("authkit: %w: expiresIn: %w", ErrConfig, err)
	}
	if rc.refreshTTL, err = ParseTTL(cfg.RefreshExpiresIn); err != nil {
		return rc, fmt.Errorf("authkit: %w: refreshExpiresIn: %w", ErrConfig, err)
	}

	rc.issuer = strings.TrimSpace(cfg.Issuer)

	if cfg.CookieName == "" || cfg.RefreshCookieName == "" {
		return rc, fmt.Errorf("authkit: %w: cookie names must not be empty", ErrConfig)
	}
	if cfg.CookieName == cfg.RefreshCookieName {
		return rc, fmt.Errorf("authkit: %w: access and refresh cookies must have distinct names", ErrConfig)
	}

	rc.access, err = resolveCookie(cfg.CookieName, cfg.Cookie, rc.accessTTL)
	if err != nil {
		return rc, err
	}

	refreshCookie := cfg.Cookie
	refreshCookie.MaxAge = 0 // inherit attributes, never the access MaxAge
	if cfg.RefreshCookie != nil {
		refreshCookie = *cfg.RefreshCookie
	}
	rc.refresh, err = resolveCookie(cfg.RefreshCookieName, refreshCookie, rc.refreshTTL)
	if err != nil {
		return rc, err
	}

	rc.password = password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}

	return rc, nil
}

func resolveCookie(name string, cc CookieConfig, ttl time.Duration) (cookie.Options, error) {
	sameSite, err := parseSameSite(cc.SameSite)
	if err != nil {
		return cookie.Options{}, err
	}

	maxAge := cc.MaxAge
	if maxAge == 0 {
		maxAge = int(ttl / time.Second)
	}
	path := cc.Path
	if path == "" {
		path = "/"
	}

	return cookie.Options{
		Name:     name,
		Path:     path,
		Domain:   cc.Domain,
		MaxAge:   maxAge,
		Secure:   cc.Secure,
		HTTPOnly: cc.HTTPOnly,
		SameSite: sameSite,
	}, nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("authkit: %w: unknown SameSite value %q", ErrConfig, s)
	}
}

// ParseTTL parses a "<integer><unit>" lifetime where unit is one of
// s, m, h, d. Anything else is a configuration error.
func ParseTTL(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid ttl %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid ttl %q", s)
	}

	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid ttl unit in %q", s)
	}
}
