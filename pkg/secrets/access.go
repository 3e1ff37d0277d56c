package secrets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// accessLookup resolves the caller's grant on one resource.
type accessLookup func(ctx context.Context, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error)

// resolver turns the actor context into a per-resource decision. It skips
// the grant lookup when the caller is exempt from access checks.
type resolver struct {
	evaluator *rbac.Evaluator
	metrics   *observability.Metrics
}

func newResolver(evaluator *rbac.Evaluator, metrics *observability.Metrics) *resolver {
	if evaluator == nil {
		evaluator = rbac.NewEvaluator()
	}
	return &resolver{evaluator: evaluator, metrics: metrics}
}

// client returns the evaluation mode for ac in orgID.
func (r *resolver) client(ac *auth.ActorContext, orgID uuid.UUID) rbac.AccessClientType {
	return rbac.ResolveAccessClient(ac.ClientType, ac.OrganizationAdmin(orgID))
}

// decide evaluates op on one resource. A nil lookup means the operation
// needs no grant (list, create).
func (r *resolver) decide(ctx context.Context, ac *auth.ActorContext, resource rbac.Resource, op rbac.Operation, orgID uuid.UUID, lookup accessLookup) (rbac.Access, rbac.Decision, error) {
	var access rbac.Access
	if ac.AccessSecretsManager(orgID) && lookup != nil {
		client := r.client(ac, orgID)
		if client == rbac.AccessClientNoAccessCheck {
			access = rbac.Access{Read: true, Write: true}
		} else {
			var err error
			access, err = lookup(ctx, ac.UserID(), client)
			if err != nil {
				return rbac.Access{}, rbac.Decision{}, fmt.Errorf("failed to resolve %s access: %w", resource, err)
			}
		}
	}

	d := r.evaluator.Evaluate(ac, rbac.Request{
		Resource:       resource,
		Operation:      op,
		OrganizationID: orgID,
		Access:         access,
	})
	r.metrics.RecordDecision(string(resource), string(op), d.Allowed)
	return access, d, nil
}

func defaultLogger(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

func identity(id uuid.UUID) uuid.UUID { return id }

// indexByID maps the loaded rows by id. It reports false when any of ids
// was not loaded or the counts differ.
func indexByID[T any](items []T, ids []uuid.UUID, id func(T) uuid.UUID) (map[uuid.UUID]T, bool) {
	if len(items) != len(ids) {
		return nil, false
	}
	byID := make(map[uuid.UUID]T, len(items))
	for _, item := range items {
		byID[id(item)] = item
	}
	for _, want := range ids {
		if _, ok := byID[want]; !ok {
			return nil, false
		}
	}
	return byID, true
}
