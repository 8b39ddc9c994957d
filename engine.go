package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/authkit-go/authkit/cookie"
	"github.com/authkit-go/authkit/internal/rate"
	"github.com/authkit-go/authkit/internal/version"
	"github.com/authkit-go/authkit/password"
	"github.com/authkit-go/authkit/token"
)

const minPasswordBytes = 8

// Engine is the authentication core. It is immutable after
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config         resolvedConfig
	tokens         *token.Manager
	hasher         *password.Hasher
	cookies        *cookie.Store
	provider       UserProvider
	versions       *version.Cache
	limiter        *rate.Limiter
	audit          *auditDispatcher
	metrics        *Metrics
	logger         *slog.Logger
	upgradeOnLogin bool
}

// Close flushes and stops the audit dispatcher. The caller owns the Redis
// client and database pool lifecycles.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot copies the engine counters for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Register hashes the password and creates the account through the
// provider. The provider never sees plaintext.
func (e *Engine) Register(ctx context.Context, identifier, plaintext, role string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return UserRecord{}, fmt.Errorf("authkit: register: empty identifier")
	}
	if len(plaintext) < minPasswordBytes {
		return UserRecord{}, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return UserRecord{}, fmt.Errorf("authkit: register: %w", err)
	}

	record, err := e.provider.CreateUser(ctx, CreateUserInput{
		Identifier:   identifier,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return UserRecord{}, err
	}

	e.metrics.Inc(MetricRegistration)
	e.audit.emit(AuditEvent{EventType: AuditRegistration, UserID: record.UserID, Success: true})

	return record, nil
}

// Login verifies credentials against the stored hash. Unknown identifiers
// burn a full dummy verification so their latency matches a wrong-password
// rejection, and both cases surface as [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, identifier, plaintext string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return UserRecord{}, ErrLoginRateLimited
			}
			return UserRecord{}, fmt.Errorf("authkit: login throttle: %w", err)
		}
	}

	record, err := e.provider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.hasher.DummyVerify()
			e.noteLoginFailure(ctx, identifier, ip, "")
			return UserRecord{}, ErrInvalidCredentials
		}
		return UserRecord{}, fmt.Errorf("authkit: login lookup: %w", err)
	}

	match, err := e.hasher.Verify(plaintext, record.PasswordHash)
	if err != nil {
		// A stored hash that fails to parse is data corruption, not a
		// failed credential check. Propagate loudly.
		return UserRecord{}, fmt.Errorf("authkit: login: %w", err)
	}
	if !match {
		e.noteLoginFailure(ctx, identifier, ip, record.UserID)
		return UserRecord{}, ErrInvalidCredentials
	}

	if err := statusError(record.Status); err != nil {
		e.audit.emit(AuditEvent{EventType: AuditLoginFailure, UserID: record.UserID, Error: err.Error()})
		e.metrics.Inc(MetricLoginFailure)
		return UserRecord{}, err
	}

	e.maybeUpgradeHash(ctx, &record, plaintext)

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, identifier, ip); err != nil {
			e.logger.Warn("authkit: login counter reset failed", "error", err)
		}
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.audit.emit(AuditEvent{EventType: AuditLoginSuccess, UserID: record.UserID, Success: true})

	return record, nil
}

func (e *Engine) noteLoginFailure(ctx context.Context, identifier, ip, userID string) {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, identifier, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("authkit: login counter increment failed", "error", err)
		}
	}
	e.metrics.Inc(MetricLoginFailure)
	e.audit.emit(AuditEvent{EventType: AuditLoginFailure, UserID: userID, Error: ErrInvalidCredentials.Error()})
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, record *UserRecord, plaintext string) {
	if !e.upgradeOnLogin {
		return
	}

	needs, err := e.hasher.NeedsUpgrade(record.PasswordHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn("authkit: hash upgrade failed", "error", err)
		return
	}
	if err := e.provider.UpdatePasswordHash(ctx, record.UserID, newHash); err != nil {
		e.logger.Warn("authkit: hash upgrade store failed", "error", err)
		return
	}
	record.PasswordHash = newHash
}

// IssuePair mints an access+refresh pair for the user at the account's
// current version and binds both tokens to their cookies on w.
func (e *Engine) IssuePair(w http.ResponseWriter, user UserRecord) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	access, _, err := e.tokens.IssueAccess(token.UserSnapshot{
		ID:         user.UserID,
		Identifier: user.Identifier,
		Role:       user.Role,
	}, user.AccountVersion)
	if err != nil {
		return TokenPair{}, fmt.Errorf("authkit: issue access: %w", err)
	}

	refresh, _, err := e.tokens.IssueRefresh(user.UserID, user.AccountVersion)
	if err != nil {
		return TokenPair{}, fmt.Errorf("authkit: issue refresh: %w", err)
	}

	e.cookies.SetPair(w, access, refresh)

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Authenticate resolves the request's identity.
//
// It first validates the access cookie; when that fails it falls back to
// the refresh cookie, re-checks the account, and on success re-issues a
// fresh pair on w (AuthResult.Refreshed is then true). Every failure
// surfaces as [ErrUnauthorized] — callers learn nothing about why.
func (e *Engine) Authenticate(w http.ResponseWriter, r *http.Request) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ctx := r.Context()

	if res := e.cookies.ReadAccess(r); res.Valid {
		if e.versionCurrent(ctx, res.UserID, res.Claims.Version) {
			e.metrics.Inc(MetricAccessAccepted)
			out := &AuthResult{UserID: res.UserID, Version: res.Claims.Version}
			if res.Claims.User != nil {
				out.Role = res.Claims.User.Role
			}
			return out, nil
		}
	}

	return e.refresh(ctx, w, r)
}

// refresh is the fallback arm of the coordinator: a valid refresh cookie
// for an active, version-current account mints a new pair.
func (e *Engine) refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) (*AuthResult, error) {
	ref := e.cookies.ReadRefresh(r)
	if !ref.Valid {
		return nil, e.deny()
	}

	if e.limiter != nil {
		if err := e.limiter.CheckRefresh(ctx, ref.UserID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return nil, ErrRefreshRateLimited
			}
			e.logger.Warn("authkit: refresh throttle check failed", "error", err)
		}
	}

	record, err := e.provider.GetUserByID(ctx, ref.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("authkit: refresh lookup failed", "error", err)
		}
		return nil, e.deny()
	}
	if record.Status != AccountActive || record.AccountVersion != ref.Claims.Version {
		return nil, e.deny()
	}

	if _, err := e.IssuePair(w, record); err != nil {
		return nil, fmt.Errorf("authkit: refresh: %w", err)
	}
	e.cacheVersion(ctx, record.UserID, record.AccountVersion)

	e.metrics.Inc(MetricRefreshSuccess)
	e.audit.emit(AuditEvent{EventType: AuditRefresh, UserID: record.UserID, Success: true})

	return &AuthResult{
		UserID:    record.UserID,
		Role:      record.Role,
		Version:   record.AccountVersion,
		Refreshed: true,
	}, nil
}

func (e *Engine) deny() error {
	e.metrics.Inc(MetricUnauthorized)
	return ErrUnauthorized
}

// versionCurrent enforces the revocation gate: the token's ver claim must
// equal the account's current version. The Redis cache bounds provider
// load on the hot path; the provider remains authoritative.
func (e *Engine) versionCurrent(ctx context.Context, userID string, ver uint32) bool {
	if e.versions != nil {
		cached, ok, err := e.versions.Get(ctx, userID)
		if err != nil {
			e.logger.Warn("authkit: version cache read failed", "error", err)
		} else if ok {
			return cached == ver
		}
	}

	record, err := e.provider.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("authkit: version lookup failed", "error", err)
		}
		return false
	}

	e.cacheVersion(ctx, userID, record.AccountVersion)
	return record.AccountVersion == ver
}

func (e *Engine) cacheVersion(ctx context.Context, userID string, ver uint32) {
	if e.versions == nil {
		return
	}
	if err := e.versions.Put(ctx, userID, ver); err != nil {
		e.logger.Warn("authkit: version cache write failed", "error", err)
	}
}

// Logout clears both session cookies. Tokens already in the wild stay
// valid until expiry unless the account version is bumped.
func (e *Engine) Logout(w http.ResponseWriter) {
	if e == nil {
		return
	}
	e.cookies.ClearPair(w)
	e.audit.emit(AuditEvent{EventType: AuditLogout, Success: true})
}

// Revoke bumps the account's version counter, invalidating every token
// issued before the bump on its next validation.
func (e *Engine) Revoke(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	newVersion, err := e.provider.BumpAccountVersion(ctx, userID)
	if err != nil {
		return fmt.Errorf("authkit: revoke: %w", err)
	}
	e.cacheVersion(ctx, userID, newVersion)

	e.metrics.Inc(MetricRevocation)
	e.audit.emit(AuditEvent{EventType: AuditRevocation, UserID: userID, Success: true})

	return nil
}

// ChangePassword verifies the old password, stores a new hash, and
// revokes all outstanding tokens by bumping the account version.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if len(newPassword) < minPasswordBytes {
		return ErrPasswordPolicy
	}

	record, err := e.provider.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	match, err := e.hasher.Verify(oldPassword, record.PasswordHash)
	if err != nil {
		return fmt.Errorf("authkit: change password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("authkit: change password: %w", err)
	}
	if err := e.provider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("authkit: change password: %w", err)
	}

	newVersion, err := e.provider.BumpAccountVersion(ctx, userID)
	if err != nil {
		return fmt.Errorf("authkit: change password revocation: %w", err)
	}
	e.cacheVersion(ctx, userID, newVersion)

	e.metrics.Inc(MetricPasswordChange)
	e.audit.emit(AuditEvent{EventType: AuditPasswordChange, UserID: userID, Success: true})

	return nil
}
