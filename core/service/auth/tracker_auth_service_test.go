package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
)

type fakeIdentity struct {
	ident *out.Identity
	err   error
}

func (f fakeIdentity) FetchIdentity(ctx context.Context, token *oauth2.Token) (*out.Identity, error) {
	return f.ident, f.err
}

type fixture struct {
	svc       *Service
	accounts  *memory.AccountStore
	states    *memory.OAuthStateStore
	blacklist *memory.SessionBlacklist
}

// newTokenServer answers both code exchange and refresh requests.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
		case "refresh_token":
			if r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T, identity out.IdentityProvider) *fixture {
	t.Helper()
	srv := newTokenServer(t)
	f := &fixture{
		accounts:  memory.NewAccountStore(),
		states:    memory.NewOAuthStateStore(),
		blacklist: memory.NewSessionBlacklist(),
	}
	if identity == nil {
		identity = fakeIdentity{ident: &out.Identity{Subject: "google-123", Email: "ada@example.com", Name: "Ada"}}
	}
	oauthCfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Scopes:       Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}
	f.svc = NewService(oauthCfg, identity, f.accounts, f.states, f.blacklist, Config{SessionSecret: "test-secret", SessionTTL: time.Hour})
	return f
}

func (f *fixture) login(t *testing.T) (string, string) {
	t.Helper()
	authURL, err := f.svc.BeginLogin(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "offline", u.Query().Get("access_type"))

	session, err := f.svc.CompleteLogin(context.Background(), state, "good-code")
	require.NoError(t, err)
	return state, session.Token
}

func TestLogin_IssuesSession(t *testing.T) {
	f := newFixture(t, nil)
	_, token := f.login(t)

	claims, err := f.svc.VerifySession(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "google-123", claims.UserID)
	assert.NotEmpty(t, claims.SessionID)

	acc, err := f.svc.CurrentAccount(context.Background(), "google-123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.Equal(t, "access-1", acc.AccessToken)
	assert.Equal(t, "refresh-1", acc.RefreshToken)
}

func TestLogin_StateIsSingleUse(t *testing.T) {
	f := newFixture(t, nil)
	state, _ := f.login(t)

	_, err := f.svc.CompleteLogin(context.Background(), state, "good-code")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	_, err = f.svc.CompleteLogin(context.Background(), "forged", "good-code")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	_, err = f.svc.CompleteLogin(context.Background(), "", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeBadRequest))
}

func TestLogin_ExchangeFailure(t *testing.T) {
	f := newFixture(t, nil)
	authURL, err := f.svc.BeginLogin(context.Background())
	require.NoError(t, err)
	u, _ := url.Parse(authURL)

	_, err = f.svc.CompleteLogin(context.Background(), u.Query().Get("state"), "bad-code")
	assert.True(t, apperr.HasCode(err, apperr.CodeOAuthFailed))
}

func TestVerifySession_Rejects(t *testing.T) {
	f := newFixture(t, nil)
	_, token := f.login(t)

	_, err := f.svc.VerifySession(context.Background(), "")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	_, err = f.svc.VerifySession(context.Background(), token+"x")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	other := NewService(nil, nil, f.accounts, f.states, f.blacklist, Config{SessionSecret: "other-secret"})
	_, err = other.VerifySession(context.Background(), token)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.VerifySession(context.Background(), token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, token := f.login(t)

	claims, err := f.svc.VerifySession(ctx, token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims))

	_, err = f.svc.VerifySession(ctx, token)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidToken))

	_, err = f.svc.Credential(ctx, claims.UserID)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

func TestCredential_Refresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)

	// Expire the stored token so the source refreshes it.
	require.NoError(t, f.accounts.UpdateToken(ctx, "google-123", &oauth2.Token{
		AccessToken: "access-1",
		Expiry:      time.Now().Add(-time.Minute),
	}))

	tok, err := f.svc.Credential(ctx, "google-123")
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)

	acc, err := f.accounts.GetByUserID(ctx, "google-123")
	require.NoError(t, err)
	assert.Equal(t, "access-2", acc.AccessToken)
}

func TestCredential_RefreshRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.accounts.Upsert(ctx, &domain.Account{
		UserID:       "google-9",
		AccessToken:  "stale",
		RefreshToken: "revoked",
		TokenExpiry:  time.Now().Add(-time.Hour),
	}))

	_, err := f.svc.Credential(ctx, "google-9")
	assert.True(t, apperr.HasCode(err, apperr.CodeCredentialInvalid))
}

func TestCredential_UnknownUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Credential(context.Background(), "nobody")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}
