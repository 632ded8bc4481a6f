package out

import (
	"context"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
)

// AccountRepository stores signed-in users and their mail credential.
type AccountRepository interface {
	Upsert(ctx context.Context, acc *domain.Account) error

	// GetByUserID returns ErrNotFound for unknown users.
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)

	UpdateToken(ctx context.Context, userID string, token *oauth2.Token) error
	ClearCredential(ctx context.Context, userID string) error
}

// Identity is the signed-in Google profile.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityProvider resolves the profile behind an access token.
type IdentityProvider interface {
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error)
}
