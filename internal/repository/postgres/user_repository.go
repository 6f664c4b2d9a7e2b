package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hoofprint/internal/domain"
)

const (
	createUserQuery = `
		INSERT INTO users (id, email, display_name, password_hash, groups)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	selectUserColumns = `SELECT id, email, display_name, password_hash, groups, created_at FROM users`

	getUserByIDQuery    = selectUserColumns + ` WHERE id = $1`
	getUserByEmailQuery = selectUserColumns + ` WHERE email = $1`
	listUsersQuery      = selectUserColumns + ` ORDER BY email`

	updatePasswordQuery = `UPDATE users SET password_hash = $2 WHERE id = $1`
)

// UserRepository implements domain.UserRepository for PostgreSQL
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	groups := user.Groups
	if groups == nil {
		groups = []string{}
	}

	err := r.db.QueryRowContext(ctx, createUserQuery,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		pq.Array(groups),
	).Scan(&user.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, usersEmailConstraint) {
			return domain.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, getUserByIDQuery, id)
}

// GetByEmail retrieves a user by their stored (lower-case) email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, getUserByEmailQuery, email)
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every user ordered by email
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, listUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces the stored hash for a user
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, updatePasswordQuery, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		pq.Array(&user.Groups),
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.Groups == nil {
		user.Groups = []string{}
	}
	return user, nil
}
