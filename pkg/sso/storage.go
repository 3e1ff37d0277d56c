package sso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Storage keeps SSO configurations in Postgres
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new SSO storage
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// GetByOrganizationID implements ConfigRepository.
func (s *Storage) GetByOrganizationID(ctx context.Context, orgID uuid.UUID) (*Config, error) {
	var data []byte
	cfg := &Config{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, enabled, data, created_at, updated_at
		FROM sso_configs
		WHERE organization_id = $1
	`, orgID).Scan(&cfg.ID, &cfg.OrganizationID, &cfg.Enabled, &data, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sso config: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sso config data: %w", err)
		}
	}
	return cfg, nil
}

// Upsert creates or replaces the organization's configuration.
func (s *Storage) Upsert(ctx context.Context, cfg *Config) error {
	if cfg.Data.MemberDecryptionType != "" && !cfg.Data.MemberDecryptionType.Valid() {
		return fmt.Errorf("unknown member decryption type %q", cfg.Data.MemberDecryptionType)
	}
	data, err := json.Marshal(cfg.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal sso config data: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sso_configs (organization_id, enabled, data, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (organization_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, data = EXCLUDED.data, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, cfg.OrganizationID, cfg.Enabled, data).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sso config: %w", err)
	}
	return nil
}
