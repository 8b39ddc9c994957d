// Package token issues, signs, decodes, and validates the HS256 identity
// tokens carried by authkit's session cookies.
//
// A token is a standard three-segment JWT: base64url(header), base64url
// (claims), base64url(HMAC-SHA256 digest). Access and refresh tokens share
// the same wire format and are separated by the "type" claim; Validate
// enforces that separation so a refresh token can never be replayed where
// an access token is expected.
//
// Decode is deliberately non-authoritative: it parses without verifying
// the signature and must never feed an authorization decision. ValidateAccess
// and ValidateRefresh are the only entry points that establish trust.
package token
