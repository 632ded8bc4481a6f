package domain

import "time"

// =============================================================================
// Account - signed-in Google user and stored mail credential
// =============================================================================

type Account struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCredential reports whether a mail credential is stored.
func (a *Account) HasCredential() bool {
	return a != nil && (a.AccessToken != "" || a.RefreshToken != "")
}
