// Package persistence provides database adapters.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/oauth2"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/crypto"
	"tracker_server/pkg/logger"
)

// AccountAdapter implements out.AccountRepository using PostgreSQL.
// Tokens are encrypted at rest when an encryptor is configured.
type AccountAdapter struct {
	db  *sqlx.DB
	enc *crypto.Encryptor
}

// NewAccountAdapter creates a new AccountAdapter. enc may be nil.
func NewAccountAdapter(db *sqlx.DB, enc *crypto.Encryptor) *AccountAdapter {
	if enc == nil {
		logger.Warn("token encryption disabled: ENCRYPTION_KEY not set")
	}
	return &AccountAdapter{db: db, enc: enc}
}

type accountRow struct {
	UserID       string         `db:"user_id"`
	Email        string         `db:"email"`
	Name         string         `db:"name"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	TokenExpiry  sql.NullTime   `db:"token_expiry"`
	Scopes       pq.StringArray `db:"scopes"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (a *AccountAdapter) seal(token string) (string, error) {
	if a.enc == nil {
		return token, nil
	}
	return a.enc.Encrypt(token)
}

func (a *AccountAdapter) open(token string) (string, error) {
	if a.enc == nil {
		return token, nil
	}
	return a.enc.Decrypt(token)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (a *AccountAdapter) Upsert(ctx context.Context, acc *domain.Account) error {
	access, err := a.seal(acc.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := a.seal(acc.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	// Google omits the refresh token on repeat consent; keep the stored one.
	query := `
		INSERT INTO accounts (user_id, email, name, access_token, refresh_token, token_expiry, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token = '' THEN accounts.refresh_token ELSE EXCLUDED.refresh_token END,
			token_expiry = EXCLUDED.token_expiry,
			scopes = EXCLUDED.scopes,
			updated_at = now()
		RETURNING created_at, updated_at`

	var ts struct {
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err = a.db.GetContext(ctx, &ts, query,
		acc.UserID, acc.Email, acc.Name, access, refresh,
		nullTime(acc.TokenExpiry), pq.StringArray(acc.Scopes),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	acc.CreatedAt = ts.CreatedAt
	acc.UpdatedAt = ts.UpdatedAt
	return nil
}

func (a *AccountAdapter) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	var row accountRow
	query := `
		SELECT user_id, email, name, access_token, refresh_token, token_expiry, scopes, created_at, updated_at
		FROM accounts
		WHERE user_id = $1`

	if err := a.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a.toEntity(&row)
}

func (a *AccountAdapter) toEntity(row *accountRow) (*domain.Account, error) {
	access, err := a.open(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := a.open(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	acc := &domain.Account{
		UserID:       row.UserID,
		Email:        row.Email,
		Name:         row.Name,
		AccessToken:  access,
		RefreshToken: refresh,
		Scopes:       []string(row.Scopes),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.TokenExpiry.Valid {
		acc.TokenExpiry = row.TokenExpiry.Time
	}
	return acc, nil
}

func (a *AccountAdapter) UpdateToken(ctx context.Context, userID string, token *oauth2.Token) error {
	access, err := a.seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := a.seal(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	query := `
		UPDATE accounts SET
			access_token = $2,
			refresh_token = CASE WHEN $3 = '' THEN refresh_token ELSE $3 END,
			token_expiry = $4,
			updated_at = now()
		WHERE user_id = $1`

	res, err := a.db.ExecContext(ctx, query, userID, access, refresh, nullTime(token.Expiry))
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return requireRow(res)
}

func (a *AccountAdapter) ClearCredential(ctx context.Context, userID string) error {
	query := `
		UPDATE accounts SET
			access_token = '',
			refresh_token = '',
			token_expiry = NULL,
			updated_at = now()
		WHERE user_id = $1`

	res, err := a.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return out.ErrNotFound
	}
	return nil
}

var _ out.AccountRepository = (*AccountAdapter)(nil)
