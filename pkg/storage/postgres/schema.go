package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the repositories read and write. Each
// statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		billing_email VARCHAR(255) NOT NULL DEFAULT '',
		plan_type VARCHAR(32) NOT NULL,
		seats INTEGER,
		max_autoscale_seats INTEGER,
		use_directory BOOLEAN NOT NULL DEFAULT FALSE,
		use_custom_permissions BOOLEAN NOT NULL DEFAULT FALSE,
		use_policies BOOLEAN NOT NULL DEFAULT FALSE,
		use_sso BOOLEAN NOT NULL DEFAULT FALSE,
		use_key_connector BOOLEAN NOT NULL DEFAULT FALSE,
		use_secrets_manager BOOLEAN NOT NULL DEFAULT FALSE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		gateway_customer_id VARCHAR(255) NOT NULL DEFAULT '',
		gateway_subscription_id VARCHAR(255) NOT NULL DEFAULT '',
		public_key TEXT NOT NULL DEFAULT '',
		private_key TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		has_master_password BOOLEAN NOT NULL DEFAULT TRUE,
		two_factor_providers TEXT NOT NULL DEFAULT '',
		premium BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS organization_users (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id UUID REFERENCES users(id) ON DELETE CASCADE,
		email VARCHAR(255),
		key TEXT,
		reset_password_key TEXT,
		type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		permissions JSONB,
		external_id VARCHAR(300) NOT NULL DEFAULT '',
		access_all BOOLEAN NOT NULL DEFAULT FALSE,
		access_secrets_manager BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_organization_users_org ON organization_users (organization_id, type, status)`,
	`CREATE INDEX IF NOT EXISTS idx_organization_users_user ON organization_users (user_id)`,
	`CREATE TABLE IF NOT EXISTS organization_user_collections (
		organization_user_id UUID NOT NULL REFERENCES organization_users(id) ON DELETE CASCADE,
		collection_id UUID NOT NULL,
		read_only BOOLEAN NOT NULL DEFAULT FALSE,
		hide_passwords BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (organization_user_id, collection_id)
	)`,
	`CREATE TABLE IF NOT EXISTS organization_user_groups (
		organization_user_id UUID NOT NULL REFERENCES organization_users(id) ON DELETE CASCADE,
		group_id UUID NOT NULL,
		PRIMARY KEY (organization_user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS policies (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		type VARCHAR(64) NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (organization_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS sso_configs (
		id BIGSERIAL PRIMARY KEY,
		organization_id UUID NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS secrets (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS project_secrets (
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		secret_id UUID NOT NULL REFERENCES secrets(id) ON DELETE CASCADE,
		PRIMARY KEY (project_id, secret_id)
	)`,
	`CREATE TABLE IF NOT EXISTS service_accounts (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS access_policies (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		grantee_user_id UUID REFERENCES users(id) ON DELETE CASCADE,
		grantee_service_account_id UUID REFERENCES service_accounts(id) ON DELETE CASCADE,
		granted_project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
		granted_secret_id UUID REFERENCES secrets(id) ON DELETE CASCADE,
		granted_service_account_id UUID REFERENCES service_accounts(id) ON DELETE CASCADE,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		write BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_access_policies_project ON access_policies (granted_project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_access_policies_secret ON access_policies (granted_secret_id)`,
	`CREATE INDEX IF NOT EXISTS idx_access_policies_service_account ON access_policies (granted_service_account_id)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		service_account_id UUID NOT NULL REFERENCES service_accounts(id) ON DELETE CASCADE,
		name VARCHAR(200) NOT NULL,
		client_secret_hash VARCHAR(128) NOT NULL,
		scope TEXT[] NOT NULL,
		encrypted_payload TEXT NOT NULL,
		key TEXT NOT NULL,
		expire_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_expire_at ON api_keys (expire_at) WHERE expire_at IS NOT NULL`,
}

// EnsureSchema creates the tables if they don't exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
