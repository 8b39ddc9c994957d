// Package cookie binds access and refresh tokens to a pair of HTTP cookies.
//
// Reads are non-throwing: an absent, empty, or invalid cookie is an
// expected client condition and yields a ReadResult with Valid == false.
// Every read runs the full token validation gate for its kind; callers can
// trust Claims whenever Valid is true.
package cookie

import (
	"net/http"
	"strings"

	"github.com/authkit-go/authkit/token"
)

// Options is the attribute set of one cookie.
type Options struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Store writes and reads the access/refresh cookie pair. It is immutable
// after construction and safe for concurrent use.
type Store struct {
	access  Options
	refresh Options
	tokens  *token.Manager
}

// ReadResult is the discriminated outcome of reading one cookie. When
// Valid is false the other fields are zero.
type ReadResult struct {
	Valid  bool
	Raw    string
	Claims *token.Claims
	UserID string
}

// NewStore builds a Store over the given token manager and per-cookie
// attribute sets.
func NewStore(tokens *token.Manager, access, refresh Options) *Store {
	return &Store{
		access:  access,
		refresh: refresh,
		tokens:  tokens,
	}
}

// SetPair writes both cookies on the response.
func (s *Store) SetPair(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, bake(s.access, accessToken, s.access.MaxAge))
	http.SetCookie(w, bake(s.refresh, refreshToken, s.refresh.MaxAge))
}

// ClearPair expires both cookies on the response.
func (s *Store) ClearPair(w http.ResponseWriter) {
	http.SetCookie(w, bake(s.access, "", -1))
	http.SetCookie(w, bake(s.refresh, "", -1))
}

// ReadAccess extracts the access cookie and validates it as an access token.
func (s *Store) ReadAccess(r *http.Request) ReadResult {
	return s.read(r, s.access.Name, s.tokens.ValidateAccess)
}

// ReadRefresh extracts the refresh cookie and validates it as a refresh token.
func (s *Store) ReadRefresh(r *http.Request) ReadResult {
	return s.read(r, s.refresh.Name, s.tokens.ValidateRefresh)
}

func (s *Store) read(r *http.Request, name string, validate func(string) (*token.Claims, error)) ReadResult {
	if r == nil {
		return ReadResult{}
	}

	c, err := r.Cookie(name)
	if err != nil || c == nil {
		return ReadResult{}
	}
	raw := strings.TrimSpace(c.Value)
	if raw == "" {
		return ReadResult{}
	}

	claims, err := validate(raw)
	if err != nil {
		return ReadResult{}
	}

	return ReadResult{
		Valid:  true,
		Raw:    raw,
		Claims: claims,
		UserID: claims.Subject,
	}
}

func bake(opts Options, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     opts.Name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	}
}
