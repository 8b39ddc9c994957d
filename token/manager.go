package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates access tokens from refresh tokens. The kind is baked
// into the signed claims and checked by the matching validation path.
type Kind string

const (
	// KindAccess marks short-lived tokens that authorize ordinary requests.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens accepted only when minting a new pair.
	KindRefresh Kind = "refresh"
)

// defaultIssuer is used when the configuration does not name one.
const defaultIssuer = "authkit"

// UserSnapshot is the identity embedded in access tokens so request
// handlers can act without a database lookup. Refresh tokens carry only
// the subject.
type UserSnapshot struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Claims is the signed payload of an authkit token.
//
// Version is the account's revocation counter at issuance; a token whose
// Version trails the account's current counter must not be honored.
type Claims struct {
	Kind    Kind          `json:"type"`
	Version uint32        `json:"ver"`
	User    *UserSnapshot `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// Config carries the immutable inputs of a [Manager]. Secret is the raw
// HMAC key; TTLs must already be resolved to durations.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string

	// Now overrides the clock. Nil means time.Now. Tests use it to cross
	// expiry boundaries without sleeping.
	Now func() time.Time
}

// Manager signs and validates tokens with a single symmetric HS256 key.
// It is immutable after construction and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready Manager. A weak secret or
// non-positive TTL is a configuration defect and fails loudly here, before
// any token can be issued.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("token: access TTL must be positive")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: refresh TTL must be positive")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = defaultIssuer
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// IssueAccess mints a signed access token for the given identity at the
// given account version. The snapshot travels inside the token.
func (m *Manager) IssueAccess(user UserSnapshot, version uint32) (string, *Claims, error) {
	if user.ID == "" {
		return "", nil, errors.New("token: empty user id")
	}

	claims := m.newClaims(KindAccess, user.ID, version, m.config.AccessTTL)
	claims.User = &user

	return m.sign(claims)
}

// IssueRefresh mints a signed refresh token for the given subject at the
// given account version. No identity snapshot is embedded.
func (m *Manager) IssueRefresh(userID string, version uint32) (string, *Claims, error) {
	if userID == "" {
		return "", nil, errors.New("token: empty user id")
	}

	return m.sign(m.newClaims(KindRefresh, userID, version, m.config.RefreshTTL))
}

func (m *Manager) newClaims(kind Kind, subject string, version uint32, ttl time.Duration) *Claims {
	now := m.now()

	return &Claims{
		Kind:    kind,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (m *Manager) sign(claims *Claims) (string, *Claims, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}

	return signed, claims, nil
}

// Decode parses a token string WITHOUT verifying its signature or claims.
// It exists for logging, diagnostics, and extracting the subject of a
// token that is about to be validated; it must never gate authorization.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return claims, nil
}

// ValidateAccess runs the full gate chain (signature, time window, kind)
// and returns the claims of a trustworthy access token.
func (m *Manager) ValidateAccess(tokenStr string) (*Claims, error) {
	return m.validate(tokenStr, KindAccess)
}

// ValidateRefresh is the refresh-path counterpart of [Manager.ValidateAccess].
func (m *Manager) ValidateRefresh(tokenStr string) (*Claims, error) {
	return m.validate(tokenStr, KindRefresh)
}

// validate is the kind-agnostic core. It is unexported on purpose: request
// handling must always state which kind it expects.
func (m *Manager) validate(tokenStr string, kind Kind) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	if claims.Subject == "" {
		return nil, ErrInvalid
	}
	if claims.Kind != kind {
		return nil, ErrKindMismatch
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
}
