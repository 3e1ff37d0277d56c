package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/orgs"
)

const userColumns = `id, email, name, has_master_password, two_factor_providers, premium, created_at, updated_at`

// UserRepository implements orgs.UserRepository and orgs.TwoFactorChecker
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row scanner) (*orgs.User, error) {
	var u orgs.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.HasMasterPassword, &u.TwoFactorProviders, &u.Premium, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetMany returns the users among ids that exist
func (r *UserRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*orgs.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY email`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*orgs.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

// GetByEmail matches email case-insensitively. Returns nil when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*orgs.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *orgs.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, has_master_password, two_factor_providers, premium)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.HasMasterPassword, u.TwoFactorProviders, u.Premium).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Replace overwrites the user's profile columns
func (r *UserRepository) Replace(ctx context.Context, u *orgs.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			email = $2, name = $3, has_master_password = $4, two_factor_providers = $5, premium = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.Email, u.Name, u.HasMasterPassword, u.TwoFactorProviders, u.Premium).Scan(&u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s not found", u.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to replace user: %w", err)
	}
	return nil
}

// twoFactorProvider is one entry of the stored provider map
type twoFactorProvider struct {
	Enabled bool `json:"enabled"`
	Premium bool `json:"premium,omitempty"`
}

// TwoFactorIsEnabled reports whether any stored provider is enabled.
// Premium-only providers count only while the user has premium.
func (r *UserRepository) TwoFactorIsEnabled(_ context.Context, user *orgs.User) (bool, error) {
	return twoFactorEnabled(user)
}

func twoFactorEnabled(user *orgs.User) (bool, error) {
	if user == nil || user.TwoFactorProviders == "" {
		return false, nil
	}
	var providers map[string]twoFactorProvider
	if err := json.Unmarshal([]byte(user.TwoFactorProviders), &providers); err != nil {
		return false, fmt.Errorf("failed to parse two-factor providers of user %s: %w", user.ID, err)
	}
	for _, p := range providers {
		if p.Enabled && (!p.Premium || user.Premium) {
			return true, nil
		}
	}
	return false, nil
}
