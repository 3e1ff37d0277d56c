package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
)

// ProjectRepository implements secrets.ProjectRepository. Listings are
// served from read, everything else from db.
type ProjectRepository struct {
	db   *sql.DB
	read ReadPool
}

// NewProjectRepository creates a project repository. A nil read uses db.
func NewProjectRepository(db *sql.DB, read ReadPool) *ProjectRepository {
	return &ProjectRepository{db: db, read: readPool(db, read)}
}

func scanProject(row scanner) (*secrets.Project, error) {
	var p secrets.Project
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns the project or nil when it does not exist
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*secrets.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, created_at, updated_at FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// GetManyByOrganizationID lists the projects of orgID the caller can read
func (r *ProjectRepository) GetManyByOrganizationID(ctx context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*secrets.Project, error) {
	column, err := granteeColumn(client)
	if err != nil {
		return nil, err
	}

	query := `SELECT p.id, p.organization_id, p.name, p.created_at, p.updated_at FROM projects p WHERE p.organization_id = $1`
	args := []interface{}{orgID}
	if column != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM access_policies ap
			WHERE ap.granted_project_id = p.id AND ap.read AND ap.` + column + ` = $2
		)`
		args = append(args, userID)
	}
	query += ` ORDER BY p.created_at DESC, p.id`

	rows, err := r.read.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*secrets.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	return projects, nil
}

// GetManyWithSecretsByIDs returns the existing projects among ids with
// their secret ids
func (r *ProjectRepository) GetManyWithSecretsByIDs(ctx context.Context, ids []uuid.UUID) ([]*secrets.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.organization_id, p.name, p.created_at, p.updated_at,
			COALESCE(ARRAY_AGG(ps.secret_id::text) FILTER (WHERE ps.secret_id IS NOT NULL), '{}')
		FROM projects p
		LEFT JOIN project_secrets ps ON ps.project_id = p.id
		WHERE p.id = ANY($1::uuid[])
		GROUP BY p.id
	`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*secrets.Project
	for rows.Next() {
		var (
			p         secrets.Project
			secretIDs []string
		)
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.CreatedAt, &p.UpdatedAt, pq.Array(&secretIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if p.SecretIDs, err = parseUUIDs(secretIDs); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	return projects, nil
}

// AccessToProject resolves the caller's grant on the project
func (r *ProjectRepository) AccessToProject(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	return resolveAccess(ctx, r.db, `granted_project_id = $1`, id, userID, client)
}

// Create stores project and grants a user or service account creator read
// and write access to it
func (r *ProjectRepository) Create(ctx context.Context, project *secrets.Project, userID uuid.UUID, client rbac.AccessClientType) error {
	column, err := granteeColumn(client)
	if err != nil {
		return err
	}
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO projects (id, organization_id, name) VALUES ($1, $2, $3)
			RETURNING created_at, updated_at
		`, project.ID, project.OrganizationID, project.Name).Scan(&project.CreatedAt, &project.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		if column == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO access_policies (`+column+`, granted_project_id, read, write) VALUES ($1, $2, TRUE, TRUE)
		`, userID, project.ID); err != nil {
			return fmt.Errorf("failed to grant project access: %w", err)
		}
		return nil
	})
}

// Replace renames the project
func (r *ProjectRepository) Replace(ctx context.Context, project *secrets.Project) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE projects SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		project.ID, project.Name).Scan(&project.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s not found", project.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to replace project: %w", err)
	}
	return nil
}

// DeleteManyByID deletes projects; grants and secret links cascade
func (r *ProjectRepository) DeleteManyByID(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ANY($1::uuid[])`, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to delete projects: %w", err)
	}
	return nil
}
