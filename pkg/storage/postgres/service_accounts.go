package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
)

// ServiceAccountRepository implements secrets.ServiceAccountRepository
type ServiceAccountRepository struct {
	db   *sql.DB
	read ReadPool
}

// NewServiceAccountRepository creates a service account repository. A nil
// read uses db.
func NewServiceAccountRepository(db *sql.DB, read ReadPool) *ServiceAccountRepository {
	return &ServiceAccountRepository{db: db, read: readPool(db, read)}
}

func scanServiceAccount(row scanner) (*secrets.ServiceAccount, error) {
	var a secrets.ServiceAccount
	if err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID returns the account or nil when it does not exist
func (r *ServiceAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*secrets.ServiceAccount, error) {
	a, err := scanServiceAccount(r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, created_at, updated_at FROM service_accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service account: %w", err)
	}
	return a, nil
}

// GetManyByOrganizationID lists the accounts of orgID the caller can read.
// Service accounts never see other service accounts.
func (r *ServiceAccountRepository) GetManyByOrganizationID(ctx context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*secrets.ServiceAccount, error) {
	query := `SELECT a.id, a.organization_id, a.name, a.created_at, a.updated_at FROM service_accounts a WHERE a.organization_id = $1`
	args := []interface{}{orgID}

	switch client {
	case rbac.AccessClientNoAccessCheck:
	case rbac.AccessClientUser:
		query += ` AND EXISTS (
			SELECT 1 FROM access_policies ap
			WHERE ap.granted_service_account_id = a.id AND ap.read AND ap.grantee_user_id = $2
		)`
		args = append(args, userID)
	default:
		return nil, nil
	}
	query += ` ORDER BY a.created_at DESC, a.id`

	rows, err := r.read.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*secrets.ServiceAccount
	for rows.Next() {
		a, err := scanServiceAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read service accounts: %w", err)
	}
	return accounts, nil
}

// AccessToServiceAccount resolves a user's grant on the account. Service
// account callers hold no grant on other accounts.
func (r *ServiceAccountRepository) AccessToServiceAccount(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	if client == rbac.AccessClientServiceAccount {
		return rbac.Access{}, nil
	}
	return resolveAccess(ctx, r.db, `granted_service_account_id = $1`, id, userID, client)
}

// Create stores account and grants userID read and write access to it
func (r *ServiceAccountRepository) Create(ctx context.Context, account *secrets.ServiceAccount, userID uuid.UUID) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO service_accounts (id, organization_id, name) VALUES ($1, $2, $3)
			RETURNING created_at, updated_at
		`, account.ID, account.OrganizationID, account.Name).Scan(&account.CreatedAt, &account.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create service account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO access_policies (grantee_user_id, granted_service_account_id, read, write) VALUES ($1, $2, TRUE, TRUE)
		`, userID, account.ID); err != nil {
			return fmt.Errorf("failed to grant service account access: %w", err)
		}
		return nil
	})
}

// Replace renames the account
func (r *ServiceAccountRepository) Replace(ctx context.Context, account *secrets.ServiceAccount) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE service_accounts SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		account.ID, account.Name).Scan(&account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("service account %s not found", account.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to replace service account: %w", err)
	}
	return nil
}
