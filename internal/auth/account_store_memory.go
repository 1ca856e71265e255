package auth

import (
	"context"
	"sync"
	"time"

	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

// NewInMemoryAccountStore returns an AccountStore backed by an in-memory map.
func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{accounts: make(map[string]models.Account)}
}

// InMemoryAccountStore implements AccountStore for tests and local development.
// Username and email uniqueness mirror the SQL schema.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

// Create persists a new account.
func (s *InMemoryAccountStore) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return repositories.ErrUsernameTaken
		}
		if existing.Email == account.Email {
			return repositories.ErrEmailTaken
		}
	}
	if _, ok := s.accounts[account.ID]; ok {
		return repositories.ErrConflict
	}
	s.accounts[account.ID] = account
	return nil
}

// FindByID retrieves an account by identifier.
func (s *InMemoryAccountStore) FindByID(_ context.Context, id string) (models.Account, error) {
	s.mu.RLock()
	account, ok := s.accounts[id]
	s.mu.RUnlock()
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

// FindProfileByID retrieves an account with its credential fields cleared.
func (s *InMemoryAccountStore) FindProfileByID(ctx context.Context, id string) (models.Account, error) {
	account, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	return account.Sanitized(), nil
}

// FindByIdentifier retrieves an account by username or email.
func (s *InMemoryAccountStore) FindByIdentifier(_ context.Context, identifier string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.Username == identifier || account.Email == identifier {
			return account, nil
		}
	}
	return models.Account{}, repositories.ErrNotFound
}

// FindByUsername retrieves an account by username.
func (s *InMemoryAccountStore) FindByUsername(_ context.Context, username string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return models.Account{}, repositories.ErrNotFound
}

// SetRefreshToken overwrites the session slot.
func (s *InMemoryAccountStore) SetRefreshToken(_ context.Context, id, token string) error {
	return s.mutate(id, func(a *models.Account) error {
		a.RefreshToken = token
		return nil
	})
}

// SwapRefreshToken replaces the session slot only while it still holds current.
func (s *InMemoryAccountStore) SwapRefreshToken(_ context.Context, id, current, next string) error {
	err := s.mutate(id, func(a *models.Account) error {
		if a.RefreshToken != current {
			return repositories.ErrStaleToken
		}
		a.RefreshToken = next
		return nil
	})
	if err == repositories.ErrNotFound {
		return repositories.ErrStaleToken
	}
	return err
}

// ClearRefreshToken empties the session slot.
func (s *InMemoryAccountStore) ClearRefreshToken(_ context.Context, id string) error {
	err := s.mutate(id, func(a *models.Account) error {
		a.RefreshToken = ""
		return nil
	})
	if err == repositories.ErrNotFound {
		return nil
	}
	return err
}

// UpdatePassword stores a new password hash.
func (s *InMemoryAccountStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(a *models.Account) error {
		a.PasswordHash = passwordHash
		return nil
	})
}

// UpdateDetails changes the display name and email.
func (s *InMemoryAccountStore) UpdateDetails(_ context.Context, id, fullName, email string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.Email == email {
			return models.Account{}, repositories.ErrEmailTaken
		}
	}
	account.FullName = fullName
	account.Email = email
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account
	return account, nil
}

// ReplaceAvatar stores a new avatar and returns the previous one.
func (s *InMemoryAccountStore) ReplaceAvatar(_ context.Context, id, location string) (string, error) {
	var previous string
	err := s.mutate(id, func(a *models.Account) error {
		previous, a.Avatar = a.Avatar, location
		return nil
	})
	return previous, err
}

// ReplaceCoverImage stores a new cover image and returns the previous one.
func (s *InMemoryAccountStore) ReplaceCoverImage(_ context.Context, id, location string) (string, error) {
	var previous string
	err := s.mutate(id, func(a *models.Account) error {
		previous, a.CoverImage = a.CoverImage, location
		return nil
	})
	return previous, err
}

// Delete removes an account. Useful for tests.
func (s *InMemoryAccountStore) Delete(id string) {
	s.mu.Lock()
	delete(s.accounts, id)
	s.mu.Unlock()
}

// RefreshTokenOf reports the stored refresh token. Useful for tests.
func (s *InMemoryAccountStore) RefreshTokenOf(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id].RefreshToken
}

func (s *InMemoryAccountStore) mutate(id string, fn func(*models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if err := fn(&account); err != nil {
		return err
	}
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account
	return nil
}
