// Package authkit issues, validates, and cookie-binds short-lived identity
// tokens (HS256 access + refresh pairs) and performs salted password
// hashing for credential storage.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([UserRecord], [AuthResult], [TokenPair]). Token wire
// handling lives in the token subpackage, hashing in password, cookie
// binding in cookie; Redis-backed throttling and version caching live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Evaluate permissions or roles beyond carrying them in the snapshot.
//   - Provision or migrate database schema (the pgstore subpackage only
//     issues queries against a caller-managed table).
//   - Reveal to callers WHY a presented token was rejected: every
//     validation failure surfaces as [ErrUnauthorized].
//
// # Validation contract
//
// Authenticate is the hot path. A valid access cookie costs one HMAC
// verification plus one version lookup (Redis hit or provider call); the
// refresh fallback is allowed one additional provider round-trip.
package authkit
