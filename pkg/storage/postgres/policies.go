package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/orgs"
)

// PolicyRepository implements orgs.PolicyRepository
type PolicyRepository struct {
	db *sql.DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetManyByOrganizationID returns every policy of orgID, enabled or not
func (r *PolicyRepository) GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) (orgs.Policies, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, type, enabled, data, created_at, updated_at
		FROM policies
		WHERE organization_id = $1
		ORDER BY type
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies orgs.Policies
	for rows.Next() {
		var (
			p          orgs.Policy
			policyType string
			data       []byte
		)
		if err := rows.Scan(&p.ID, &p.OrganizationID, &policyType, &p.Enabled, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Type = orgs.PolicyType(policyType)
		if len(data) > 0 {
			p.Data = append([]byte(nil), data...)
		}
		policies = append(policies, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read policies: %w", err)
	}
	return policies, nil
}

// Upsert creates or replaces the organization's policy of p.Type
func (r *PolicyRepository) Upsert(ctx context.Context, p *orgs.Policy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var data interface{}
	if len(p.Data) > 0 {
		data = string(p.Data)
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO policies (id, organization_id, type, enabled, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (organization_id, type) DO UPDATE
		SET enabled = EXCLUDED.enabled, data = EXCLUDED.data, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, p.ID, p.OrganizationID, string(p.Type), p.Enabled, data).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}
