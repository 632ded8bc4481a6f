// Package auth signs users in with Google, issues session tokens and hands
// out the stored mail credential.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
)

const (
	sessionIssuer   = "tracker_server"
	defaultStateTTL = 10 * time.Minute
)

// Scopes requested at sign-in. Mail access is read-only.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/gmail.readonly",
}

type Config struct {
	SessionSecret string
	SessionTTL    time.Duration
	StateTTL      time.Duration
}

type Service struct {
	oauth     *oauth2.Config
	identity  out.IdentityProvider
	accounts  out.AccountRepository
	states    out.OAuthStateStore
	blacklist out.SessionBlacklist
	cfg       Config
	now       func() time.Time
}

func NewService(
	oauthCfg *oauth2.Config,
	identity out.IdentityProvider,
	accounts out.AccountRepository,
	states out.OAuthStateStore,
	blacklist out.SessionBlacklist,
	cfg Config,
) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}
	return &Service{
		oauth:     oauthCfg,
		identity:  identity,
		accounts:  accounts,
		states:    states,
		blacklist: blacklist,
		cfg:       cfg,
		now:       time.Now,
	}
}

var _ in.AuthService = (*Service)(nil)

func (s *Service) BeginLogin(ctx context.Context) (string, error) {
	if s.oauth == nil {
		return "", apperr.ConfigError("google oauth not configured")
	}
	state, err := randomState()
	if err != nil {
		return "", apperr.InternalWithError(err)
	}
	if err := s.states.Save(ctx, state, s.cfg.StateTTL); err != nil {
		return "", apperr.StoreError("save oauth state", err)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (s *Service) CompleteLogin(ctx context.Context, state, code string) (*in.Session, error) {
	if s.oauth == nil {
		return nil, apperr.ConfigError("google oauth not configured")
	}
	if state == "" || code == "" {
		return nil, apperr.BadRequest("missing state or code")
	}

	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, apperr.StoreError("consume oauth state", err)
	}
	if !ok {
		return nil, apperr.InvalidInput("state", "unknown or expired")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.OAuthFailed("google", err)
	}

	ident, err := s.identity.FetchIdentity(ctx, token)
	if err != nil {
		return nil, apperr.OAuthFailed("google", err)
	}
	if ident.Subject == "" {
		return nil, apperr.OAuthFailed("google", errors.New("profile without subject"))
	}

	acc := &domain.Account{
		UserID:       ident.Subject,
		Email:        ident.Email,
		Name:         ident.Name,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		Scopes:       s.oauth.Scopes,
	}
	if err := s.accounts.Upsert(ctx, acc); err != nil {
		return nil, apperr.StoreError("upsert account", err)
	}

	session, err := s.issue(acc.UserID)
	if err != nil {
		return nil, err
	}
	session.Account = acc

	logger.WithField("user_id", acc.UserID).Info("user signed in: %s", acc.Email)
	return session, nil
}

func (s *Service) issue(userID string) (*in.Session, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return nil, apperr.InternalWithError(fmt.Errorf("sign session: %w", err))
	}
	return &in.Session{
		Token: signed,
		Claims: in.SessionClaims{
			UserID:    userID,
			SessionID: claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		},
	}, nil
}

func (s *Service) VerifySession(ctx context.Context, tokenString string) (*in.SessionClaims, error) {
	if tokenString == "" {
		return nil, apperr.AuthRequired("")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.SessionSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.InvalidToken("session expired")
		}
		return nil, apperr.InvalidToken("invalid session")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, apperr.InvalidToken("invalid session")
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.StoreError("check session", err)
	}
	if revoked {
		return nil, apperr.InvalidToken("session revoked")
	}

	return &in.SessionClaims{
		UserID:    claims.Subject,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session and drops the stored mail credential.
func (s *Service) Logout(ctx context.Context, claims *in.SessionClaims) error {
	if claims == nil || claims.UserID == "" {
		return apperr.AuthRequired("")
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl > 0 {
		if err := s.blacklist.Revoke(ctx, claims.SessionID, ttl); err != nil {
			return apperr.StoreError("revoke session", err)
		}
	}
	if err := s.accounts.ClearCredential(ctx, claims.UserID); err != nil && !errors.Is(err, out.ErrNotFound) {
		return apperr.StoreError("clear credential", err)
	}
	return nil
}

func (s *Service) CurrentAccount(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, apperr.AuthRequired("")
	}
	acc, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.AuthRequired("account not found")
		}
		return nil, apperr.StoreError("get account", err)
	}
	return acc, nil
}

func (s *Service) Credential(ctx context.Context, userID string) (*oauth2.Token, error) {
	acc, err := s.CurrentAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !acc.HasCredential() {
		return nil, apperr.AuthRequired("mail access not granted, sign in again")
	}

	current := &oauth2.Token{
		AccessToken:  acc.AccessToken,
		RefreshToken: acc.RefreshToken,
		Expiry:       acc.TokenExpiry,
		TokenType:    "Bearer",
	}
	if s.oauth == nil {
		return current, nil
	}

	fresh, err := s.oauth.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, apperr.CredentialInvalid(err)
	}
	if fresh.AccessToken != current.AccessToken {
		if err := s.accounts.UpdateToken(ctx, userID, fresh); err != nil {
			logger.WithError(err).WithField("user_id", userID).Warn("failed to persist refreshed token")
		}
	}
	return fresh, nil
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
