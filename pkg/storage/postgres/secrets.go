package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
)

// SecretRepository implements secrets.SecretRepository
type SecretRepository struct {
	db *sql.DB
}

// NewSecretRepository creates a new secret repository
func NewSecretRepository(db *sql.DB) *SecretRepository {
	return &SecretRepository{db: db}
}

// GetManyByIDs returns the existing secrets among ids with their project ids
func (r *SecretRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*secrets.Secret, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.organization_id, s.key, s.value, s.note, s.created_at, s.updated_at,
			COALESCE(ARRAY_AGG(ps.project_id::text) FILTER (WHERE ps.project_id IS NOT NULL), '{}')
		FROM secrets s
		LEFT JOIN project_secrets ps ON ps.secret_id = s.id
		WHERE s.id = ANY($1::uuid[])
		GROUP BY s.id
	`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}
	defer rows.Close()

	var result []*secrets.Secret
	for rows.Next() {
		var (
			s          secrets.Secret
			projectIDs []string
		)
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Key, &s.Value, &s.Note, &s.CreatedAt, &s.UpdatedAt, pq.Array(&projectIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		if s.ProjectIDs, err = parseUUIDs(projectIDs); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	return result, nil
}

// AccessToSecret resolves the caller's grant on the secret, directly or
// through any project holding it
func (r *SecretRepository) AccessToSecret(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	return resolveAccess(ctx, r.db,
		`granted_secret_id = $1 OR granted_project_id IN (SELECT project_id FROM project_secrets WHERE secret_id = $1)`,
		id, userID, client)
}

// DeleteManyByID deletes secrets; grants and project links cascade
func (r *SecretRepository) DeleteManyByID(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ANY($1::uuid[])`, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to delete secrets: %w", err)
	}
	return nil
}
