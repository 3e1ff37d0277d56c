package secrets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// SecretService manages secrets
type SecretService struct {
	secrets SecretRepository
	access  *resolver
	logger  logrus.FieldLogger
}

// NewSecretService creates a secret service
func NewSecretService(secrets SecretRepository, evaluator *rbac.Evaluator, metrics *observability.Metrics, logger logrus.FieldLogger) *SecretService {
	return &SecretService{
		secrets: secrets,
		access:  newResolver(evaluator, metrics),
		logger:  defaultLogger(logger),
	}
}

// DeleteMany deletes every secret in ids the caller may write, with the
// same all-or-nothing existence check as ProjectService.DeleteMany.
func (s *SecretService) DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error) {
	if len(ids) == 0 {
		return nil, errs.BadRequest("No items were provided.")
	}

	found, err := s.secrets.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	byID, ok := indexByID(found, ids, func(sec *Secret) uuid.UUID { return sec.ID })
	if !ok {
		return nil, errs.NotFound("")
	}

	results, err := bulk.Run(ctx, "delete_secrets", ids, identity,
		func(ctx context.Context, id uuid.UUID) error {
			sec := byID[id]
			lookup := func(ctx context.Context, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
				return s.secrets.AccessToSecret(ctx, sec.ID, userID, client)
			}
			_, d, err := s.access.decide(ctx, ac, rbac.ResourceSecret, rbac.OperationDelete, sec.OrganizationID, lookup)
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
		if err := s.secrets.DeleteManyByID(ctx, deletable); err != nil {
			return nil, fmt.Errorf("failed to delete secrets: %w", err)
		}
		s.logger.WithField("deleted", len(deletable)).Info("Secrets deleted")
	}
	return results, nil
}
