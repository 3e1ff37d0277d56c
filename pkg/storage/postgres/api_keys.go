package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/secrets"
)

// ApiKeyRepository implements secrets.ApiKeyRepository
type ApiKeyRepository struct {
	db   *sql.DB
	read ReadPool
}

// NewApiKeyRepository creates an access token repository. A nil read uses db.
func NewApiKeyRepository(db *sql.DB, read ReadPool) *ApiKeyRepository {
	return &ApiKeyRepository{db: db, read: readPool(db, read)}
}

// GetManyByServiceAccountID lists the account's tokens, newest first
func (r *ApiKeyRepository) GetManyByServiceAccountID(ctx context.Context, serviceAccountID uuid.UUID) ([]*secrets.ApiKey, error) {
	rows, err := r.read.Replica().QueryContext(ctx, `
		SELECT id, service_account_id, name, client_secret_hash, scope, encrypted_payload, key, expire_at, created_at, updated_at
		FROM api_keys
		WHERE service_account_id = $1
		ORDER BY created_at DESC, id
	`, serviceAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*secrets.ApiKey
	for rows.Next() {
		var (
			k        secrets.ApiKey
			expireAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.ServiceAccountID, &k.Name, &k.ClientSecretHash, pq.Array(&k.Scope),
			&k.EncryptedPayload, &k.Key, &expireAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if expireAt.Valid {
			t := expireAt.Time
			k.ExpireAt = &t
		}
		keys = append(keys, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read api keys: %w", err)
	}
	return keys, nil
}

// Create stores a new token
func (r *ApiKeyRepository) Create(ctx context.Context, key *secrets.ApiKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	var expireAt sql.NullTime
	if key.ExpireAt != nil {
		expireAt = sql.NullTime{Time: *key.ExpireAt, Valid: true}
	}
	if err := r.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (id, service_account_id, name, client_secret_hash, scope, encrypted_payload, key, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, key.ID, key.ServiceAccountID, key.Name, key.ClientSecretHash, pq.Array(key.Scope),
		key.EncryptedPayload, key.Key, expireAt,
	).Scan(&key.CreatedAt, &key.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// DeleteManyByServiceAccount deletes the account's tokens among ids
func (r *ApiKeyRepository) DeleteManyByServiceAccount(ctx context.Context, serviceAccountID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE service_account_id = $1 AND id = ANY($2::uuid[])`,
		serviceAccountID, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to delete api keys: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens whose expiry is at or before now
func (r *ApiKeyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE expire_at IS NOT NULL AND expire_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired api keys: %w", err)
	}
	return rowsAffected(res)
}
