package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// MsgNameRequired is returned for a project or service account without a name.
const MsgNameRequired = "Name is required."

// ProjectService manages secrets manager projects. Every authorization
// failure is reported as NotFound so callers cannot probe for projects
// they may not see.
type ProjectService struct {
	projects ProjectRepository
	access   *resolver
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewProjectService creates a project service
func NewProjectService(projects ProjectRepository, evaluator *rbac.Evaluator, metrics *observability.Metrics, logger logrus.FieldLogger) *ProjectService {
	return &ProjectService{
		projects: projects,
		access:   newResolver(evaluator, metrics),
		logger:   defaultLogger(logger),
		now:      time.Now,
	}
}

func (s *ProjectService) lookup(id uuid.UUID) accessLookup {
	return func(ctx context.Context, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
		return s.projects.AccessToProject(ctx, id, userID, client)
	}
}

// List returns the projects of orgID visible to the caller.
func (s *ProjectService) List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*Project, error) {
	if !ac.AccessSecretsManager(orgID) {
		return nil, errs.NotFound("")
	}

	projects, err := s.projects.GetManyByOrganizationID(ctx, orgID, ac.UserID(), s.access.client(ac, orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Get returns one project with the caller's grant on it.
func (s *ProjectService) Get(ctx context.Context, ac *auth.ActorContext, id uuid.UUID) (*ProjectWithAccess, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, errs.NotFound("")
	}

	access, d, err := s.access.decide(ctx, ac, rbac.ResourceProject, rbac.OperationRead, project.OrganizationID, s.lookup(id))
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, errs.NotFound("")
	}
	return &ProjectWithAccess{Project: project, Read: access.Read, Write: access.Write}, nil
}

// Create adds a project to orgID. The creator gets read and write access.
func (s *ProjectService) Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*ProjectWithAccess, error) {
	_, d, err := s.access.decide(ctx, ac, rbac.ResourceProject, rbac.OperationCreate, orgID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, errs.NotFound("")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.BadRequest(MsgNameRequired)
	}

	now := s.now().UTC()
	project := &Project{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.projects.Create(ctx, project, ac.UserID(), s.access.client(ac, orgID)); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"project_id":      project.ID,
	}).Info("Project created")
	return &ProjectWithAccess{Project: project, Read: true, Write: true}, nil
}

// Update renames a project.
func (s *ProjectService) Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*ProjectWithAccess, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, errs.NotFound("")
	}

	_, d, err := s.access.decide(ctx, ac, rbac.ResourceProject, rbac.OperationUpdate, project.OrganizationID, s.lookup(id))
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, errs.NotFound("")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.BadRequest(MsgNameRequired)
	}

	project.Name = name
	project.UpdatedAt = s.now().UTC()
	if err := s.projects.Replace(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return &ProjectWithAccess{Project: project, Read: true, Write: true}, nil
}

// DeleteMany deletes every project in ids the caller may write. If any id
// does not exist the whole call fails with NotFound and nothing is deleted.
func (s *ProjectService) DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error) {
	if len(ids) == 0 {
		return nil, errs.BadRequest("No items were provided.")
	}

	projects, err := s.projects.GetManyWithSecretsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	byID, ok := indexByID(projects, ids, func(p *Project) uuid.UUID { return p.ID })
	if !ok {
		return nil, errs.NotFound("")
	}

	results, err := bulk.Run(ctx, "delete_projects", ids, identity,
		func(ctx context.Context, id uuid.UUID) error {
			p := byID[id]
			_, d, err := s.access.decide(ctx, ac, rbac.ResourceProject, rbac.OperationDelete, p.OrganizationID, s.lookup(p.ID))
			if err != nil {
				return err
			}
			if !d.Allowed {
				return errs.Unauthorized(d.Reason)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	if deletable := bulk.Succeeded(results); len(deletable) > 0 {
		if err := s.projects.DeleteManyByID(ctx, deletable); err != nil {
			return nil, fmt.Errorf("failed to delete projects: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"deleted": len(deletable),
			"denied":  bulk.Failed(results),
		}).Info("Projects deleted")
	}
	return results, nil
}
