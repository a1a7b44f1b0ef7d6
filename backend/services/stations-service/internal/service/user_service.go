package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/repository"
)

const (
	anonymousUsername   = "AnonymousUser"
	maxUsernameLength   = 50
	maxUsernameBase     = 40
	maxUsernameAttempts = 1000
	maxSignInAttempts   = 3

	defaultSearchLimit = 10
	maxSearchLimit     = 20
)

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Search(ctx context.Context, term, excludeID string, limit int) ([]models.UserSummary, error)
	SharedWithStation(ctx context.Context, stationID string) ([]models.UserSummary, error)
}

// UserService manages accounts and profiles.
type UserService struct {
	users    UserStore
	stations StationStore
	tokens   *TokenService
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService wires the service.
func NewUserService(users UserStore, stations StationStore, tokens *TokenService, logger *zap.Logger) *UserService {
	return &UserService{users: users, stations: stations, tokens: tokens, logger: logger, now: time.Now}
}

// SignIn finds or creates the user behind a verified identity-provider email and issues a token.
func (s *UserService) SignIn(ctx context.Context, email, name string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := models.ValidateVar("email", email, "required,email"); err != nil {
		return nil, "", err
	}

	user, err := s.findOrCreate(ctx, email, strings.TrimSpace(name))
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("sign in: %w", err)
	}
	return user, token, nil
}

func (s *UserService) findOrCreate(ctx context.Context, email, name string) (*models.User, error) {
	for attempt := 0; attempt < maxSignInAttempts; attempt++ {
		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if user.Username != "" {
				return user, nil
			}
			if user.Username, err = s.generateUsername(ctx, email, user.Name); err != nil {
				return nil, err
			}
			err = s.users.UpdateProfile(ctx, user)
		case errors.Is(err, repository.ErrUserNotFound):
			verified := s.now().UTC()
			user = &models.User{ID: uuid.NewString(), Email: email, Name: name, EmailVerified: &verified}
			if user.Username, err = s.generateUsername(ctx, email, name); err != nil {
				return nil, err
			}
			err = s.users.Create(ctx, user)
			if err == nil {
				s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("username", user.Username))
			}
		default:
			return nil, fmt.Errorf("sign in: %w", err)
		}

		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		s.logger.Warn("sign in raced on unique value, retrying", zap.Int("attempt", attempt+1))
	}
	return nil, errors.New("sign in: could not assign a unique username")
}

// generateUsername derives a base from the email local part, else the display name without
// whitespace, else AnonymousUser, and appends 1, 2, ... until it is free.
func (s *UserService) generateUsername(ctx context.Context, email, name string) (string, error) {
	base := usernameBase(email, name)
	candidate := base
	for i := 1; i <= maxUsernameAttempts; i++ {
		taken, err := s.users.UsernameTaken(ctx, candidate, "")
		if err != nil {
			return "", fmt.Errorf("generate username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("generate username: no free suffix for %q", base)
}

func usernameBase(email, name string) string {
	var base string
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		base = local
	} else {
		base = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, name)
	}
	if base == "" {
		return anonymousUsername
	}
	if runes := []rune(base); len(runes) > maxUsernameBase {
		base = string(runes[:maxUsernameBase])
	}
	return base
}

// Profile returns the requester with their owned stations and the stations shared with them.
func (s *UserService) Profile(ctx context.Context, requesterID string) (*models.Profile, error) {
	user, err := s.requireUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	owned, err := s.stations.Query(ctx, models.StationQuery{OwnerID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	shared, err := s.stations.Query(ctx, models.StationQuery{Visibility: models.VisibilityPrivate, SharedWith: user.ID})
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &models.Profile{User: *user, OwnedStations: owned, SharedStations: shared}, nil
}

// UpdateProfile changes the requester's username and/or email.
func (s *UserService) UpdateProfile(ctx context.Context, requesterID string, patch models.ProfilePatch) (*models.User, error) {
	user, err := s.requireUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if err := validateUsername(username); err != nil {
			return nil, err
		}
		if username != user.Username {
			taken, err := s.users.UsernameTaken(ctx, username, user.ID)
			if err != nil {
				return nil, fmt.Errorf("update profile: %w", err)
			}
			if taken {
				return nil, models.NewValidationError("username is already taken")
			}
		}
		user.Username = username
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if err := models.ValidateVar("email", email, "required,email"); err != nil {
			return nil, err
		}
		user.Email = email
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, models.NewValidationError("username or email is already taken")
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, models.NewNotFoundError("user", requesterID)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.logger.Info("profile updated", zap.String("user_id", user.ID))
	return user, nil
}

// Search finds other users by username or email substring.
func (s *UserService) Search(ctx context.Context, requesterID, term string, limit int) ([]models.UserSummary, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to search users")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, models.NewValidationError("query is required")
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, models.NewValidationError("limit must be between 1 and %d", maxSearchLimit)
	}

	users, err := s.users.Search(ctx, term, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// PublicUser returns what anyone may see about a user: identity and public stations.
func (s *UserService) PublicUser(ctx context.Context, id string) (*models.PublicUser, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("user", id)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, models.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("public user: %w", err)
	}
	stations, err := s.stations.Query(ctx, models.StationQuery{Visibility: models.VisibilityPublic, OwnerID: id})
	if err != nil {
		return nil, fmt.Errorf("public user: %w", err)
	}
	return &models.PublicUser{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt, Stations: stations}, nil
}

// Stats aggregates the requester's station counts.
func (s *UserService) Stats(ctx context.Context, requesterID string) (models.UserStats, error) {
	if requesterID == "" {
		return models.UserStats{}, models.NewAuthorizationError("sign in to view stats")
	}
	stats, err := s.stations.Stats(ctx, requesterID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// UsernameAvailable reports whether nobody but the requester holds username.
func (s *UserService) UsernameAvailable(ctx context.Context, requesterID, username string) (bool, error) {
	if requesterID == "" {
		return false, models.NewAuthorizationError("sign in to check usernames")
	}
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return false, err
	}
	taken, err := s.users.UsernameTaken(ctx, username, requesterID)
	if err != nil {
		return false, fmt.Errorf("username available: %w", err)
	}
	return !taken, nil
}

func (s *UserService) requireUser(ctx context.Context, requesterID string) (*models.User, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in required")
	}
	user, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, models.NewNotFoundError("user", requesterID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func validateUsername(username string) error {
	return models.ValidateVar("username", username, "required,min=1,max="+strconv.Itoa(maxUsernameLength))
}
