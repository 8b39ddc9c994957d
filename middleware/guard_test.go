package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	authkit "github.com/authkit-go/authkit"
)

type memProvider struct {
	users map[string]authkit.UserRecord // by id
}

func (p *memProvider) GetUserByIdentifier(_ context.Context, identifier string) (authkit.UserRecord, error) {
	for _, u := range p.users {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return authkit.UserRecord{}, authkit.ErrUserNotFound
}

func (p *memProvider) GetUserByID(_ context.Context, userID string) (authkit.UserRecord, error) {
	u, ok := p.users[userID]
	if !ok {
		return authkit.UserRecord{}, authkit.ErrUserNotFound
	}
	return u, nil
}

func (p *memProvider) CreateUser(_ context.Context, input authkit.CreateUserInput) (authkit.UserRecord, error) {
	u := authkit.UserRecord{
		UserID:         input.Identifier,
		Identifier:     input.Identifier,
		PasswordHash:   input.PasswordHash,
		Role:           input.Role,
		AccountVersion: 1,
	}
	p.users[u.UserID] = u
	return u, nil
}

func (p *memProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	u, ok := p.users[userID]
	if !ok {
		return authkit.ErrUserNotFound
	}
	u.PasswordHash = newHash
	p.users[userID] = u
	return nil
}

func (p *memProvider) BumpAccountVersion(_ context.Context, userID string) (uint32, error) {
	u, ok := p.users[userID]
	if !ok {
		return 0, authkit.ErrUserNotFound
	}
	u.AccountVersion++
	p.users[userID] = u
	return u.AccountVersion, nil
}

func (p *memProvider) UpdateAccountStatus(_ context.Context, userID string, status authkit.AccountStatus) (authkit.UserRecord, error) {
	u, ok := p.users[userID]
	if !ok {
		return authkit.UserRecord{}, authkit.ErrUserNotFound
	}
	u.Status = status
	p.users[userID] = u
	return u, nil
}

func newTestEngine(t *testing.T) (*authkit.Engine, *memProvider) {
	t.Helper()

	provider := &memProvider{users: map[string]authkit.UserRecord{
		"u1": {
			UserID:         "u1",
			Identifier:     "alice",
			Role:           "admin",
			Status:         authkit.AccountActive,
			AccountVersion: 1,
		},
	}}

	cfg := authkit.DefaultConfig()
	cfg.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authkit.New().
		WithConfig(cfg).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider
}

// issueCookies mints a pair for the user and returns the Set-Cookie values
// as request cookies.
func issueCookies(t *testing.T, engine *authkit.Engine, user authkit.UserRecord) []*http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if _, err := engine.IssuePair(rec, user); err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	return rec.Result().Cookies()
}

func protectedHandler(t *testing.T, gotResult **authkit.AuthResult) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Errorf("expected auth result in context")
		}
		*gotResult = res
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardAllowsValidAccessCookie(t *testing.T) {
	engine, provider := newTestEngine(t)

	var result *authkit.AuthResult
	handler := Guard(engine)(protectedHandler(t, &result))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range issueCookies(t, engine, provider.users["u1"]) {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if result == nil || result.UserID != "u1" || result.Role != "admin" {
		t.Fatalf("unexpected auth result: %+v", result)
	}
	if result.Refreshed {
		t.Fatalf("valid access path must not refresh")
	}
}

func TestGuardRefreshesWhenAccessCookieMissing(t *testing.T) {
	engine, provider := newTestEngine(t)

	var result *authkit.AuthResult
	handler := Guard(engine)(protectedHandler(t, &result))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range issueCookies(t, engine, provider.users["u1"]) {
		if c.Name == "authkit_refresh" {
			req.AddCookie(c)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 via refresh fallback, got %d", rec.Code)
	}
	if result == nil || !result.Refreshed {
		t.Fatalf("expected refreshed result, got %+v", result)
	}

	// A fresh pair must have been set on the response.
	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	if !names["authkit_token"] || !names["authkit_refresh"] {
		t.Fatalf("expected both cookies re-issued, got %v", names)
	}
}

func TestGuardRejectsMissingCookies(t *testing.T) {
	engine, _ := newTestEngine(t)

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Errorf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardRejectsGarbageCookies(t *testing.T) {
	engine, _ := newTestEngine(t)

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Errorf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "authkit_token", Value: "not.a.token"})
	req.AddCookie(&http.Cookie{Name: "authkit_refresh", Value: "junk"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardRejectsAfterRevocation(t *testing.T) {
	engine, provider := newTestEngine(t)

	cookies := issueCookies(t, engine, provider.users["u1"])

	if err := engine.Revoke(context.Background(), "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Errorf("handler must not run after revocation")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", rec.Code)
	}
}
