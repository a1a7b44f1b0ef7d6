package testutil

import (
	"context"
	"sort"
	"strings"

	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/repository"
)

// UserStore is the user repository view of a Store.
type UserStore struct {
	s *Store
}

// Users returns the user repository backed by the same data as s.
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

func (u *UserStore) conflicts(user *models.User) bool {
	for id, other := range u.s.users {
		if id == user.ID {
			continue
		}
		if user.Username != "" && strings.EqualFold(other.Username, user.Username) {
			return true
		}
		if user.Email != "" && other.Email == user.Email {
			return true
		}
	}
	return false
}

// Create implements the user repository.
func (u *UserStore) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if u.conflicts(user) {
		return repository.ErrConflict
	}
	user.CreatedAt = u.s.tick()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	u.s.users[user.ID] = &cp
	return nil
}

// GetByID implements the user repository.
func (u *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// GetByEmail implements the user repository.
func (u *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range u.s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// UsernameTaken implements the user repository.
func (u *UserStore) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for id, user := range u.s.users {
		if id != excludeID && strings.EqualFold(user.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// UpdateProfile implements the user repository.
func (u *UserStore) UpdateProfile(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	existing, ok := u.s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if u.conflicts(user) {
		return repository.ErrConflict
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.UpdatedAt = u.s.tick()
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

// Search implements the user repository.
func (u *UserStore) Search(_ context.Context, term, excludeID string, limit int) ([]models.UserSummary, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	term = strings.ToLower(term)
	out := []models.UserSummary{}
	for id, user := range u.s.users {
		if id == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), term) || strings.Contains(strings.ToLower(user.Email), term) {
			out = append(out, user.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SharedWithStation implements the user repository.
func (u *UserStore) SharedWithStation(_ context.Context, stationID string) ([]models.UserSummary, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	out := []models.UserSummary{}
	for _, id := range u.s.shares[stationID] {
		if user, ok := u.s.users[id]; ok {
			out = append(out, user.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
