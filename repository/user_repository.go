package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"resonate/db"
	"resonate/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePreferences(ctx context.Context, id int64, preferences string) error
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	DB *sql.DB
}

// NewMySQLUserRepository creates a new instance of mysqlUserRepository.
func NewMySQLUserRepository() UserRepository {
	return &mysqlUserRepository{DB: db.DB}
}

const userColumns = `id, email, display_name, password_hash, preferences, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Preferences, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser adds a new user and returns its ID.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	query := `INSERT INTO users (email, display_name, password_hash, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, query, user.Email, user.DisplayName, user.PasswordHash, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateUser: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateUser: %w", err)
	}
	return id, nil
}

// UserByID retrieves a user by ID. Returns (nil, nil) when no user exists.
func (r *mysqlUserRepository) UserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user by ID %d: %w", id, err)
	}
	return user, nil
}

// UserByEmail retrieves a user by email. Returns (nil, nil) when no user
// exists.
func (r *mysqlUserRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user by email: %w", err)
	}
	return user, nil
}

// UpdatePreferences replaces the user's preferences JSON blob.
func (r *mysqlUserRepository) UpdatePreferences(ctx context.Context, id int64, preferences string) error {
	query := `UPDATE users SET preferences = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, preferences, time.Now(), id); err != nil {
		return fmt.Errorf("failed to execute UpdatePreferences for user %d: %w", id, err)
	}
	return nil
}
