package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/orgs"
)

const organizationColumns = `
	id, name, billing_email, plan_type, seats, max_autoscale_seats,
	use_directory, use_custom_permissions, use_policies, use_sso, use_key_connector, use_secrets_manager,
	enabled, gateway_customer_id, gateway_subscription_id, public_key, private_key,
	created_at, updated_at`

// OrganizationRepository implements orgs.OrganizationRepository
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func scanOrganization(row scanner) (*orgs.Organization, error) {
	var (
		org                 orgs.Organization
		planType            string
		seats, maxAutoscale sql.NullInt64
	)
	if err := row.Scan(
		&org.ID, &org.Name, &org.BillingEmail, &planType, &seats, &maxAutoscale,
		&org.UseDirectory, &org.UseCustomPermissions, &org.UsePolicies, &org.UseSso, &org.UseKeyConnector, &org.UseSecretsManager,
		&org.Enabled, &org.GatewayCustomerID, &org.GatewaySubscriptionID, &org.PublicKey, &org.PrivateKey,
		&org.CreatedAt, &org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	org.PlanType = orgs.PlanType(planType)
	org.Seats = intPtr(seats)
	org.MaxAutoscaleSeats = intPtr(maxAutoscale)
	return &org, nil
}

// GetByID returns the organization or nil when it does not exist
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*orgs.Organization, error) {
	org, err := scanOrganization(r.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *orgs.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO organizations (
			id, name, billing_email, plan_type, seats, max_autoscale_seats,
			use_directory, use_custom_permissions, use_policies, use_sso, use_key_connector, use_secrets_manager,
			enabled, gateway_customer_id, gateway_subscription_id, public_key, private_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`,
		org.ID, org.Name, org.BillingEmail, string(org.PlanType), nullInt(org.Seats), nullInt(org.MaxAutoscaleSeats),
		org.UseDirectory, org.UseCustomPermissions, org.UsePolicies, org.UseSso, org.UseKeyConnector, org.UseSecretsManager,
		org.Enabled, org.GatewayCustomerID, org.GatewaySubscriptionID, org.PublicKey, org.PrivateKey,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// Replace overwrites every column of org
func (r *OrganizationRepository) Replace(ctx context.Context, org *orgs.Organization) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE organizations SET
			name = $2, billing_email = $3, plan_type = $4, seats = $5, max_autoscale_seats = $6,
			use_directory = $7, use_custom_permissions = $8, use_policies = $9, use_sso = $10,
			use_key_connector = $11, use_secrets_manager = $12, enabled = $13,
			gateway_customer_id = $14, gateway_subscription_id = $15, public_key = $16, private_key = $17,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`,
		org.ID, org.Name, org.BillingEmail, string(org.PlanType), nullInt(org.Seats), nullInt(org.MaxAutoscaleSeats),
		org.UseDirectory, org.UseCustomPermissions, org.UsePolicies, org.UseSso,
		org.UseKeyConnector, org.UseSecretsManager, org.Enabled,
		org.GatewayCustomerID, org.GatewaySubscriptionID, org.PublicKey, org.PrivateKey,
	).Scan(&org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("organization %s not found", org.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to replace organization: %w", err)
	}
	return nil
}

// Delete removes org; memberships, policies and secrets manager data
// cascade
func (r *OrganizationRepository) Delete(ctx context.Context, org *orgs.Organization) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, org.ID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
