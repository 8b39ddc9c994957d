package authkit

import "context"

// AccountStatus represents the lifecycle state of a user account. Only
// active accounts may log in or refresh.
type AccountStatus uint8

const (
	// AccountActive is the normal, fully usable state.
	AccountActive AccountStatus = iota
	// AccountDisabled marks an administratively disabled account.
	AccountDisabled
	// AccountLocked marks a temporarily locked account.
	AccountLocked
	// AccountDeleted marks a soft-deleted account.
	AccountDeleted
)

// UserRecord is the account record returned by a [UserProvider]. It
// carries the stored credential, status, and the revocation version
// counter that every token validation is gated on.
type UserRecord struct {
	UserID         string
	Identifier     string
	PasswordHash   string
	Role           string
	Status         AccountStatus
	AccountVersion uint32
}

// CreateUserInput is the payload for [UserProvider.CreateUser]. The
// PasswordHash is already encoded; providers never see plaintext.
type CreateUserInput struct {
	Identifier   string
	PasswordHash string
	Role         string
}

// UserProvider is the interface callers implement to integrate authkit
// with their user database. The pgstore subpackage ships a PostgreSQL
// implementation.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	// BumpAccountVersion atomically increments the revocation counter and
	// returns the new value. Every token issued before the increment
	// becomes unusable.
	BumpAccountVersion(ctx context.Context, userID string) (uint32, error)
	UpdateAccountStatus(ctx context.Context, userID string, status AccountStatus) (UserRecord, error)
}

// AuthResult is returned by [Engine.Authenticate]. Refreshed reports that
// the access token was re-issued from the refresh cookie during this
// request; downstream handlers normally do not care.
type AuthResult struct {
	UserID    string
	Role      string
	Version   uint32
	Refreshed bool
}

// TokenPair is an access token and a refresh token issued together,
// sharing subject and version with independent lifetimes.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func statusError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeleted:
		return ErrAccountDeleted
	default:
		return ErrAccountDisabled
	}
}
