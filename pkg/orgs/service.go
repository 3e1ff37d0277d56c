package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// Dependencies are the collaborators a Service works through
type Dependencies struct {
	Organizations OrganizationRepository
	Members       OrganizationUserRepository
	Policies      PolicyRepository
	Users         UserRepository
	TwoFactor     TwoFactorChecker
	Mail          MailService
	Events        EventService
	References    ReferenceEventService
	Abilities     AbilityCache
	KeyConnector  KeyConnectorChecker
	InviteTokens  InviteTokens
	Evaluator     *rbac.Evaluator
	Metrics       *observability.Metrics
	Logger        logrus.FieldLogger
	// SelfHosted disables seat autoscaling
	SelfHosted bool
}

// Service orchestrates organization membership and subscription changes.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	orgs       OrganizationRepository
	members    OrganizationUserRepository
	policies   PolicyRepository
	users      UserRepository
	twoFactor  TwoFactorChecker
	mail       MailService
	events     EventService
	references ReferenceEventService
	abilities  AbilityCache
	keyConn    KeyConnectorChecker
	tokens     InviteTokens
	evaluator  *rbac.Evaluator
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
	selfHosted bool
	now        func() time.Time
}

// NewService creates a new membership service
func NewService(deps Dependencies) *Service {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = rbac.NewEvaluator()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		orgs:       deps.Organizations,
		members:    deps.Members,
		policies:   deps.Policies,
		users:      deps.Users,
		twoFactor:  deps.TwoFactor,
		mail:       deps.Mail,
		events:     deps.Events,
		references: deps.References,
		abilities:  deps.Abilities,
		keyConn:    deps.KeyConnector,
		tokens:     deps.InviteTokens,
		evaluator:  evaluator,
		metrics:    deps.Metrics,
		logger:     logger.WithField("component", "orgs"),
		selfHosted: deps.SelfHosted,
		now:        time.Now,
	}
}

func (s *Service) getOrganization(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if org == nil {
		return nil, errs.NotFound("")
	}
	return org, nil
}

func (s *Service) confirmedOwners(ctx context.Context, orgID uuid.UUID) ([]*OrganizationUser, error) {
	ownerType := auth.MemberTypeOwner
	owners, err := s.members.GetManyByOrganization(ctx, orgID, &ownerType)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization owners: %w", err)
	}
	return owners, nil
}

// HasConfirmedOwnersExcept reports whether orgID keeps a confirmed owner
// once the members in excludeIDs are disregarded.
func (s *Service) HasConfirmedOwnersExcept(ctx context.Context, orgID uuid.UUID, excludeIDs []uuid.UUID) (bool, error) {
	owners, err := s.confirmedOwners(ctx, orgID)
	if err != nil {
		return false, err
	}
	return hasConfirmedOwnersExcept(owners, idSet(excludeIDs)), nil
}

// authorize evaluates req and returns the denial as a BadRequest.
func (s *Service) authorize(ac *auth.ActorContext, req rbac.Request) error {
	d := s.evaluator.Evaluate(ac, req)
	s.metrics.RecordDecision(string(req.Resource), string(req.Operation), d.Allowed)
	if !d.Allowed {
		return errs.BadRequest(d.Reason)
	}
	return nil
}

func (s *Service) memberRequest(op rbac.Operation, ou *OrganizationUser) rbac.Request {
	return rbac.Request{
		Resource:       rbac.ResourceOrganizationUser,
		Operation:      op,
		OrganizationID: ou.OrganizationID,
		TargetType:     ou.Type,
	}
}

// mapOwnerGuard turns the repository's commit-time owner check into the
// user-facing rejection.
func mapOwnerGuard(err error) error {
	if errors.Is(err, ErrLastConfirmedOwner) {
		return errs.BadRequest(MsgNoConfirmedOwner)
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, ac *auth.ActorContext, ou *OrganizationUser, t EventType) {
	s.logEvents(ctx, ac, []*OrganizationUser{ou}, t)
}

func (s *Service) logEvents(ctx context.Context, ac *auth.ActorContext, ous []*OrganizationUser, t EventType) {
	if s.events == nil || len(ous) == 0 {
		return
	}
	now := s.now().UTC()
	events := make([]UserEvent, 0, len(ous))
	for _, ou := range ous {
		events = append(events, UserEvent{OrganizationUser: ou, Type: t, Actor: ac.Actor, Date: now})
	}

	var err error
	if len(events) == 1 {
		err = s.events.LogOrganizationUserEvent(ctx, events[0])
	} else {
		err = s.events.LogOrganizationUserEvents(ctx, events)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event": t,
			"count": len(events),
		}).Error("Failed to record organization user events")
	}
}

func (s *Service) raise(ctx context.Context, event ReferenceEvent) {
	if s.references == nil {
		return
	}
	event.Date = s.now().UTC()
	if err := s.references.RaiseEvent(ctx, event); err != nil {
		s.logger.WithError(err).WithField("reference_event", event.Type).Warn("Failed to raise reference event")
	}
}

func (s *Service) recordBulk(op string, results []bulk.Result) {
	failed := bulk.Failed(results)
	s.metrics.RecordBulkResults(op, len(results)-failed, failed)
	if failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"operation": op,
			"failed":    failed,
			"total":     len(results),
		}).Info("Bulk operation completed with denials")
	}
}

func identity(id uuid.UUID) uuid.UUID { return id }
