package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

var _ out.AccountRepository = (*AccountStore)(nil)

func (s *AccountStore) Upsert(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	next := *acc
	next.Scopes = append([]string(nil), acc.Scopes...)
	if prev, ok := s.accounts[acc.UserID]; ok {
		next.CreatedAt = prev.CreatedAt
		// Google omits the refresh token on repeat consent.
		if next.RefreshToken == "" {
			next.RefreshToken = prev.RefreshToken
		}
	} else {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	s.accounts[acc.UserID] = next
	return nil
}

func (s *AccountStore) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, out.ErrNotFound
	}
	return &acc, nil
}

func (s *AccountStore) UpdateToken(ctx context.Context, userID string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return out.ErrNotFound
	}
	acc.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		acc.RefreshToken = token.RefreshToken
	}
	acc.TokenExpiry = token.Expiry
	acc.UpdatedAt = time.Now()
	s.accounts[userID] = acc
	return nil
}

func (s *AccountStore) ClearCredential(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return out.ErrNotFound
	}
	acc.AccessToken = ""
	acc.RefreshToken = ""
	acc.TokenExpiry = time.Time{}
	acc.UpdatedAt = time.Now()
	s.accounts[userID] = acc
	return nil
}
