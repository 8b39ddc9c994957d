package authkit

import "errors"

var (
	// ErrUnauthorized is the single outcome of every token validation
	// failure at the public boundary. Callers cannot distinguish an
	// expired token from a forged one.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for an unknown
	// identifier or a wrong password, without distinguishing the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by providers when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by providers on identifier collisions.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountDisabled is returned when the account is administratively disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned when the account is locked out.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeleted is returned when the account is soft-deleted.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrLoginRateLimited is returned when login throttling is active
	// and the attempt budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is the refresh-path counterpart of ErrLoginRateLimited.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrPasswordPolicy is returned when a new password violates policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrConfig wraps every configuration defect detected at Build time.
	ErrConfig = errors.New("invalid configuration")
	// ErrEngineNotReady is returned when an Engine method is invoked on a
	// nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
