package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/orgs"
)

const organizationUserColumns = `
	id, organization_id, user_id, email, key, reset_password_key, type, status,
	permissions, external_id, access_all, access_secrets_manager, created_at, updated_at`

// OrganizationUserRepository implements orgs.OrganizationUserRepository.
//
// Writes that can demote, revoke or remove a confirmed owner lock the
// organization's confirmed owner rows first and recount them before
// committing, so concurrent writers cannot each remove "another" owner and
// leave none.
type OrganizationUserRepository struct {
	db *sql.DB
}

// NewOrganizationUserRepository creates a new membership repository
func NewOrganizationUserRepository(db *sql.DB) *OrganizationUserRepository {
	return &OrganizationUserRepository{db: db}
}

func scanOrganizationUser(row scanner) (*orgs.OrganizationUser, error) {
	var (
		ou          orgs.OrganizationUser
		memberType  string
		status      string
		permissions []byte
	)
	if err := row.Scan(
		&ou.ID, &ou.OrganizationID, &ou.UserID, &ou.Email, &ou.Key, &ou.ResetPasswordKey, &memberType, &status,
		&permissions, &ou.ExternalID, &ou.AccessAll, &ou.AccessSecretsManager, &ou.CreatedAt, &ou.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ou.Type = auth.MemberType(memberType)
	ou.Status = orgs.Status(status)

	p, err := decodePermissions(permissions)
	if err != nil {
		return nil, err
	}
	ou.Permissions = p
	return &ou, nil
}

func (r *OrganizationUserRepository) queryMany(ctx context.Context, q queryer, query string, args ...interface{}) ([]*orgs.OrganizationUser, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization users: %w", err)
	}
	defer rows.Close()

	var result []*orgs.OrganizationUser
	for rows.Next() {
		ou, err := scanOrganizationUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization user: %w", err)
		}
		result = append(result, ou)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read organization users: %w", err)
	}
	return result, nil
}

// GetByID returns the membership or nil when it does not exist
func (r *OrganizationUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*orgs.OrganizationUser, error) {
	ou, err := scanOrganizationUser(r.db.QueryRowContext(ctx,
		`SELECT `+organizationUserColumns+` FROM organization_users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization user: %w", err)
	}
	return ou, nil
}

// GetMany returns the memberships among ids that exist
func (r *OrganizationUserRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*orgs.OrganizationUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryMany(ctx, r.db,
		`SELECT `+organizationUserColumns+` FROM organization_users WHERE id = ANY($1::uuid[]) ORDER BY created_at, id`,
		uuidArray(ids))
}

// GetManyByOrganization lists members of orgID, optionally of one type
func (r *OrganizationUserRepository) GetManyByOrganization(ctx context.Context, orgID uuid.UUID, memberType *auth.MemberType) ([]*orgs.OrganizationUser, error) {
	if memberType != nil {
		return r.queryMany(ctx, r.db,
			`SELECT `+organizationUserColumns+` FROM organization_users WHERE organization_id = $1 AND type = $2 ORDER BY created_at, id`,
			orgID, string(*memberType))
	}
	return r.queryMany(ctx, r.db,
		`SELECT `+organizationUserColumns+` FROM organization_users WHERE organization_id = $1 ORDER BY created_at, id`,
		orgID)
}

// GetManyByManyUsers returns every membership held by userIDs
func (r *OrganizationUserRepository) GetManyByManyUsers(ctx context.Context, userIDs []uuid.UUID) ([]*orgs.OrganizationUser, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return r.queryMany(ctx, r.db,
		`SELECT `+organizationUserColumns+` FROM organization_users WHERE user_id = ANY($1::uuid[]) ORDER BY created_at, id`,
		uuidArray(userIDs))
}

// GetCountByOrganization counts members occupying a seat
func (r *OrganizationUserRepository) GetCountByOrganization(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organization_users WHERE organization_id = $1 AND status <> $2`,
		orgID, string(orgs.StatusRevoked),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count organization users: %w", err)
	}
	return n, nil
}

// GetCountByFreeOrganizationAdminUser counts the confirmed owner or admin
// memberships userID holds in free organizations
func (r *OrganizationUserRepository) GetCountByFreeOrganizationAdminUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM organization_users ou
		JOIN organizations o ON o.id = ou.organization_id
		WHERE ou.user_id = $1
			AND ou.type IN ($2, $3)
			AND ou.status = $4
			AND o.plan_type = $5
	`, userID, string(auth.MemberTypeOwner), string(auth.MemberTypeAdmin), string(orgs.StatusConfirmed), string(orgs.PlanFree),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count free organization admin memberships: %w", err)
	}
	return n, nil
}

const insertOrganizationUserQuery = `
	INSERT INTO organization_users (
		id, organization_id, user_id, email, key, reset_password_key, type, status,
		permissions, external_id, access_all, access_secrets_manager, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`

const upsertOrganizationUserSuffix = `
	ON CONFLICT (id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		email = EXCLUDED.email,
		key = EXCLUDED.key,
		reset_password_key = EXCLUDED.reset_password_key,
		type = EXCLUDED.type,
		status = EXCLUDED.status,
		permissions = EXCLUDED.permissions,
		external_id = EXCLUDED.external_id,
		access_all = EXCLUDED.access_all,
		access_secrets_manager = EXCLUDED.access_secrets_manager,
		updated_at = NOW()`

const returningTimestamps = ` RETURNING created_at, updated_at`

func organizationUserArgs(ou *orgs.OrganizationUser) ([]interface{}, error) {
	permissions, err := encodePermissions(ou.Permissions)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		ou.ID, ou.OrganizationID, ou.UserID, ou.Email, ou.Key, ou.ResetPasswordKey,
		string(ou.Type), string(ou.Status), permissions, ou.ExternalID, ou.AccessAll, ou.AccessSecretsManager,
	}, nil
}

func writeOrganizationUser(ctx context.Context, q queryer, query string, ou *orgs.OrganizationUser) error {
	if ou.ID == uuid.Nil {
		ou.ID = uuid.New()
	}
	args, err := organizationUserArgs(ou)
	if err != nil {
		return err
	}
	return q.QueryRowContext(ctx, query+returningTimestamps, args...).Scan(&ou.CreatedAt, &ou.UpdatedAt)
}

// Create inserts a membership, assigning an id when ou has none
func (r *OrganizationUserRepository) Create(ctx context.Context, ou *orgs.OrganizationUser) error {
	if err := writeOrganizationUser(ctx, r.db, insertOrganizationUserQuery, ou); err != nil {
		return fmt.Errorf("failed to create organization user: %w", err)
	}
	return nil
}

// CreateMany inserts memberships in one transaction
func (r *OrganizationUserRepository) CreateMany(ctx context.Context, ous []*orgs.OrganizationUser) error {
	if len(ous) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, ou := range ous {
			if err := writeOrganizationUser(ctx, tx, insertOrganizationUserQuery, ou); err != nil {
				return fmt.Errorf("failed to create organization user: %w", err)
			}
		}
		return nil
	})
}

// Upsert inserts ou or overwrites the existing row with its id
func (r *OrganizationUserRepository) Upsert(ctx context.Context, ou *orgs.OrganizationUser) error {
	return r.UpsertMany(ctx, []*orgs.OrganizationUser{ou})
}

// UpsertMany upserts memberships in one transaction. Owner changes are
// guarded like any other write.
func (r *OrganizationUserRepository) UpsertMany(ctx context.Context, ous []*orgs.OrganizationUser) error {
	if len(ous) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return guardOwners(ctx, tx, organizationIDs(ous), func() error {
			for _, ou := range ous {
				if err := writeOrganizationUser(ctx, tx, insertOrganizationUserQuery+upsertOrganizationUserSuffix, ou); err != nil {
					return fmt.Errorf("failed to upsert organization user: %w", err)
				}
			}
			return nil
		})
	})
}

const replaceOrganizationUserQuery = `
	UPDATE organization_users SET
		user_id = $3, email = $4, key = $5, reset_password_key = $6, type = $7, status = $8,
		permissions = $9, external_id = $10, access_all = $11, access_secrets_manager = $12,
		updated_at = NOW()
	WHERE id = $1 AND organization_id = $2
	RETURNING created_at, updated_at`

func replaceOrganizationUser(ctx context.Context, q queryer, ou *orgs.OrganizationUser) error {
	args, err := organizationUserArgs(ou)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, replaceOrganizationUserQuery, args...).Scan(&ou.CreatedAt, &ou.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("organization user %s not found", ou.ID)
	}
	return err
}

// ReplaceMany overwrites memberships in one transaction
func (r *OrganizationUserRepository) ReplaceMany(ctx context.Context, ous []*orgs.OrganizationUser) error {
	if len(ous) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return guardOwners(ctx, tx, organizationIDs(ous), func() error {
			for _, ou := range ous {
				if err := replaceOrganizationUser(ctx, tx, ou); err != nil {
					return fmt.Errorf("failed to replace organization user: %w", err)
				}
			}
			return nil
		})
	})
}

// ReplaceWithCollections overwrites ou and, when collections is not nil,
// its collection assignments
func (r *OrganizationUserRepository) ReplaceWithCollections(ctx context.Context, ou *orgs.OrganizationUser, collections []orgs.CollectionAccess) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return guardOwners(ctx, tx, []uuid.UUID{ou.OrganizationID}, func() error {
			if err := replaceOrganizationUser(ctx, tx, ou); err != nil {
				return fmt.Errorf("failed to replace organization user: %w", err)
			}
			if collections == nil {
				return nil
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM organization_user_collections WHERE organization_user_id = $1`, ou.ID); err != nil {
				return fmt.Errorf("failed to clear collection assignments: %w", err)
			}
			for _, c := range collections {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO organization_user_collections (organization_user_id, collection_id, read_only, hide_passwords)
					VALUES ($1, $2, $3, $4)
				`, ou.ID, c.CollectionID, c.ReadOnly, c.HidePasswords); err != nil {
					return fmt.Errorf("failed to assign collection: %w", err)
				}
			}
			return nil
		})
	})
}

// UpdateGroups replaces the member's group assignments
func (r *OrganizationUserRepository) UpdateGroups(ctx context.Context, orgUserID uuid.UUID, groupIDs []uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM organization_user_groups WHERE organization_user_id = $1`, orgUserID); err != nil {
			return fmt.Errorf("failed to clear group assignments: %w", err)
		}
		if len(groupIDs) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO organization_user_groups (organization_user_id, group_id)
			SELECT $1, unnest($2::uuid[])
		`, orgUserID, uuidArray(groupIDs)); err != nil {
			return fmt.Errorf("failed to assign groups: %w", err)
		}
		return nil
	})
}

// Revoke moves the member to revoked
func (r *OrganizationUserRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, orgs.StatusRevoked)
}

// Restore moves a revoked member back to status
func (r *OrganizationUserRepository) Restore(ctx context.Context, id uuid.UUID, status orgs.Status) error {
	return r.setStatus(ctx, id, status)
}

func (r *OrganizationUserRepository) setStatus(ctx context.Context, id uuid.UUID, status orgs.Status) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		orgIDs, err := organizationIDsOf(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(orgIDs) == 0 {
			return fmt.Errorf("organization user %s not found", id)
		}
		return guardOwners(ctx, tx, orgIDs, func() error {
			if _, err := tx.ExecContext(ctx,
				`UPDATE organization_users SET status = $2, updated_at = NOW() WHERE id = $1`,
				id, string(status)); err != nil {
				return fmt.Errorf("failed to set organization user status: %w", err)
			}
			return nil
		})
	})
}

// DeleteMany removes memberships. Nothing is deleted when the batch would
// remove the last confirmed owner of any organization.
func (r *OrganizationUserRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		orgIDs, err := organizationIDsOf(ctx, tx, ids)
		if err != nil {
			return err
		}
		return guardOwners(ctx, tx, orgIDs, func() error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM organization_users WHERE id = ANY($1::uuid[])`, uuidArray(ids)); err != nil {
				return fmt.Errorf("failed to delete organization users: %w", err)
			}
			return nil
		})
	})
}

// organizationIDs returns the distinct organizations of ous
func organizationIDs(ous []*orgs.OrganizationUser) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ous))
	var ids []uuid.UUID
	for _, ou := range ous {
		if !seen[ou.OrganizationID] {
			seen[ou.OrganizationID] = true
			ids = append(ids, ou.OrganizationID)
		}
	}
	return ids
}

// organizationIDsOf returns the distinct organizations of the memberships ids
func organizationIDsOf(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT organization_id FROM organization_users WHERE id = ANY($1::uuid[])`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organizations: %w", err)
	}
	defer rows.Close()

	var orgIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		orgIDs = append(orgIDs, id)
	}
	return orgIDs, rows.Err()
}

// confirmedOwners counts confirmed owners per organization. With lock set
// the owner rows stay locked until the transaction ends.
func confirmedOwners(ctx context.Context, tx *sql.Tx, orgIDs []uuid.UUID, lock bool) (map[uuid.UUID]int, error) {
	query := `SELECT organization_id FROM organization_users
		WHERE organization_id = ANY($1::uuid[]) AND type = $2 AND status = $3`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := tx.QueryContext(ctx, query, uuidArray(orgIDs), string(auth.MemberTypeOwner), string(orgs.StatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed owners: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int, len(orgIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan confirmed owner: %w", err)
		}
		counts[id]++
	}
	return counts, rows.Err()
}

// guardOwners runs write between a locking count and a recount of each
// organization's confirmed owners. An organization that had confirmed
// owners and has none afterwards fails the write with
// orgs.ErrLastConfirmedOwner.
func guardOwners(ctx context.Context, tx *sql.Tx, orgIDs []uuid.UUID, write func() error) error {
	if len(orgIDs) == 0 {
		return write()
	}

	before, err := confirmedOwners(ctx, tx, orgIDs, true)
	if err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	after, err := confirmedOwners(ctx, tx, orgIDs, false)
	if err != nil {
		return err
	}

	for _, orgID := range orgIDs {
		if before[orgID] > 0 && after[orgID] == 0 {
			return orgs.ErrLastConfirmedOwner
		}
	}
	return nil
}
