package in

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
)

type SessionClaims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

type Session struct {
	Token   string
	Claims  SessionClaims
	Account *domain.Account
}

// AuthService signs users in with Google and resolves their mail credential.
type AuthService interface {
	BeginLogin(ctx context.Context) (authURL string, err error)
	CompleteLogin(ctx context.Context, state, code string) (*Session, error)
	VerifySession(ctx context.Context, token string) (*SessionClaims, error)
	Logout(ctx context.Context, claims *SessionClaims) error
	CurrentAccount(ctx context.Context, userID string) (*domain.Account, error)

	// Credential returns a usable access token, refreshing it when needed.
	Credential(ctx context.Context, userID string) (*oauth2.Token, error)
}
