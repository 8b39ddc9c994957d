package token

import "errors"

var (
	// ErrMalformed is returned when a token string does not have the
	// three-segment header.payload.signature shape.
	ErrMalformed = errors.New("token: malformed token string")
	// ErrParse is returned when a segment is present but its JSON cannot
	// be decoded.
	ErrParse = errors.New("token: unparseable token segment")
	// ErrSignature is returned when the recomputed signature does not
	// match the one carried by the token.
	ErrSignature = errors.New("token: invalid signature")
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token: expired")
	// ErrNotYetValid is returned when the token's nbf claim is in the future.
	ErrNotYetValid = errors.New("token: not yet valid")
	// ErrKindMismatch is returned when a token of one kind is presented to
	// the validation path of the other.
	ErrKindMismatch = errors.New("token: unexpected token kind")
	// ErrInvalid covers validation failures that do not map to a more
	// specific sentinel.
	ErrInvalid = errors.New("token: invalid token")
)
