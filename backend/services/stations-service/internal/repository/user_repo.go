package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"radiowalk/backend/services/stations-service/internal/models"
)

var (
	// ErrUserNotFound represents missing user rows.
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict is returned when a unique username or email is already taken.
	ErrConflict = errors.New("unique value already taken")
)

const uniqueViolation = "23505"

// UserRepository handles the users table.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository instance.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, COALESCE(username, ''), COALESCE(email, ''), COALESCE(name, ''), email_verified, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		verified sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Name, &verified, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if verified.Valid {
		user.EmailVerified = &verified.Time
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	const query = `
		INSERT INTO users (id, username, email, name, email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, nullIfEmpty(user.Username), nullIfEmpty(user.Email), nullIfEmpty(user.Name), user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail fetches a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UsernameTaken reports whether another user already holds username (case-insensitive).
func (r *UserRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE lower(username) = lower($1) AND ($2 = '' OR id::text <> $2)
		)
	`
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, username, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("username taken: %w", err)
	}
	return taken, nil
}

// UpdateProfile writes username and email.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	const query = `
		UPDATE users SET username = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, nullIfEmpty(user.Username), nullIfEmpty(user.Email)).
		Scan(&user.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrUserNotFound
		case isUniqueViolation(err):
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Search matches username or email by case-insensitive substring.
func (r *UserRepository) Search(ctx context.Context, term, excludeID string, limit int) ([]models.UserSummary, error) {
	const query = `
		SELECT id, COALESCE(username, ''), COALESCE(email, ''), created_at
		FROM users
		WHERE (username ILIKE $1 OR email ILIKE $1) AND id::text <> $2
		ORDER BY username
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, "%"+escapeLike(term)+"%", excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return scanSummaries(rows)
}

// SharedWithStation lists the users a station is shared with.
func (r *UserRepository) SharedWithStation(ctx context.Context, stationID string) ([]models.UserSummary, error) {
	const query = `
		SELECT u.id, COALESCE(u.username, ''), COALESCE(u.email, ''), u.created_at
		FROM station_shares sh
		JOIN users u ON u.id = sh.user_id
		WHERE sh.station_id = $1
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("shared users: %w", err)
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]models.UserSummary, error) {
	defer rows.Close()
	users := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
