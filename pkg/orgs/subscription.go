package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/errs"
)

// Subscription rejections
const (
	MsgSelfHostedAutoscale    = "Cannot autoscale on self-hosted instance."
	MsgSeatLimitReached       = "Seat limit has been reached."
	MsgNoSeatLimit            = "Organization has no seat limit, no need to adjust seats."
	MsgNoPaymentMethodFound   = "No payment method found."
	MsgNoSubscriptionFound    = "No subscription found."
	MsgExistingPlanNotFound   = "Existing plan not found."
	MsgPlanNotFound           = "Plan not found."
	MsgNoAdditionalSeats      = "Plan does not allow additional seats."
	MsgAtLeastOneSeat         = "You must have at least 1 seat."
	MsgAutoscaleBelowCurrent  = "Cannot set max seat autoscaling below current seat count."
	MsgAutoscaleBelowSeats    = "Cannot set max seat autoscaling below seat count."
	MsgAutoscaleNotAllowed    = "Your plan does not allow seat autoscaling."
	MsgNoPaymentMethod        = "Your account has no payment method available."
	MsgAlreadyOnPlan          = "Your organization is already on this plan."
	MsgUpgradeFromFreeOnly    = "You can only upgrade from the free plan. Contact support."
	msgPlanMinimumSeats       = "Plan has a minimum of %d seats."
	msgPlanMaxAdditionalSeats = "Organization plan allows a maximum of %d additional seats."
	msgSeatsFilled            = "Your organization currently has %d seats filled. Your new plan only has (%d) seats. Remove some users."
	msgPlanSeatLimit          = "Your plan has a seat limit of %d, but you have specified a max autoscale count of %d. Reduce your max autoscale seat count."
)

// CanScale reports whether org may grow by seatsToAdd seats, with the
// reason when it may not.
func (s *Service) CanScale(org *Organization, seatsToAdd int) (bool, string) {
	if seatsToAdd < 1 {
		return true, ""
	}
	if s.selfHosted {
		return false, MsgSelfHostedAutoscale
	}
	if org.Seats != nil && org.MaxAutoscaleSeats != nil && *org.MaxAutoscaleSeats < *org.Seats+seatsToAdd {
		return false, MsgSeatLimitReached
	}
	return true, ""
}

// AutoAddSeats grows org by seatsToAdd seats when autoscaling allows it
func (s *Service) AutoAddSeats(ctx context.Context, org *Organization, seatsToAdd int) error {
	if seatsToAdd < 1 || org.Seats == nil {
		return nil
	}
	if ok, reason := s.CanScale(org, seatsToAdd); !ok {
		return errs.BadRequest(reason)
	}
	s.logger.WithField("organization_id", org.ID).WithField("seats", seatsToAdd).Info("Autoscaling organization seats")
	return s.AdjustSeats(ctx, org, seatsToAdd)
}

// AdjustSeats changes the seat count of org by adjustment
func (s *Service) AdjustSeats(ctx context.Context, org *Organization, adjustment int) error {
	if org.Seats == nil {
		return errs.BadRequest(MsgNoSeatLimit)
	}
	if org.GatewayCustomerID == "" {
		return errs.BadRequest(MsgNoPaymentMethodFound)
	}
	if org.GatewaySubscriptionID == "" {
		return errs.BadRequest(MsgNoSubscriptionFound)
	}
	plan, ok := PlanByType(org.PlanType)
	if !ok {
		return errs.BadRequest(MsgExistingPlanNotFound)
	}
	if !plan.HasAdditionalSeatsOption {
		return errs.BadRequest(MsgNoAdditionalSeats)
	}

	total := *org.Seats + adjustment
	if plan.BaseSeats > total {
		return errs.BadRequest(fmt.Sprintf(msgPlanMinimumSeats, plan.BaseSeats))
	}
	if total <= 0 {
		return errs.BadRequest(MsgAtLeastOneSeat)
	}
	if additional := total - plan.BaseSeats; plan.MaxAdditionalSeats != nil && additional > *plan.MaxAdditionalSeats {
		return errs.BadRequest(fmt.Sprintf(msgPlanMaxAdditionalSeats, *plan.MaxAdditionalSeats))
	}
	if *org.Seats > total {
		occupied, err := s.members.GetCountByOrganization(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("failed to count occupied seats: %w", err)
		}
		if occupied > total {
			return errs.BadRequest(fmt.Sprintf(msgSeatsFilled, occupied, total))
		}
	}
	if org.MaxAutoscaleSeats != nil && total > *org.MaxAutoscaleSeats {
		return errs.BadRequest(MsgAutoscaleBelowCurrent)
	}

	previous := *org.Seats
	org.Seats = &total
	if err := s.replaceAndUpdateCache(ctx, org); err != nil {
		return err
	}

	seats := total
	s.raise(ctx, ReferenceEvent{
		Type:           ReferenceAdjustSeats,
		OrganizationID: org.ID,
		PlanType:       org.PlanType,
		Seats:          &seats,
	})
	s.logger.WithField("organization_id", org.ID).
		WithField("previous_seats", previous).
		WithField("seats", total).
		Info("Adjusted organization seats")
	return nil
}

// UpdateSubscription sets the autoscale ceiling of an organization and
// applies a seat adjustment.
func (s *Service) UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	if maxAutoscaleSeats != nil && org.Seats != nil && *org.Seats+seatAdjustment > *maxAutoscaleSeats {
		return errs.BadRequest(MsgAutoscaleBelowSeats)
	}
	if err := s.updateAutoscaling(ctx, org, maxAutoscaleSeats); err != nil {
		return err
	}
	if seatAdjustment != 0 {
		return s.AdjustSeats(ctx, org, seatAdjustment)
	}
	return nil
}

func (s *Service) updateAutoscaling(ctx context.Context, org *Organization, maxAutoscaleSeats *int) error {
	plan, ok := PlanByType(org.PlanType)
	if !ok {
		return errs.BadRequest(MsgExistingPlanNotFound)
	}
	if maxAutoscaleSeats != nil {
		if !plan.AllowSeatAutoscale {
			return errs.BadRequest(MsgAutoscaleNotAllowed)
		}
		if plan.MaxUsers != nil && *maxAutoscaleSeats > *plan.MaxUsers {
			return errs.BadRequest(fmt.Sprintf(msgPlanSeatLimit, *plan.MaxUsers, *maxAutoscaleSeats))
		}
	}

	org.MaxAutoscaleSeats = maxAutoscaleSeats
	return s.replaceAndUpdateCache(ctx, org)
}

// UpgradePlan moves a free organization onto a paid plan
func (s *Service) UpgradePlan(ctx context.Context, orgID uuid.UUID, upgrade PlanUpgrade) error {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.GatewayCustomerID == "" {
		return errs.BadRequest(MsgNoPaymentMethod)
	}

	existing, ok := PlanByType(org.PlanType)
	if !ok {
		return errs.BadRequest(MsgExistingPlanNotFound)
	}
	plan, ok := PlanByType(upgrade.Plan)
	if !ok {
		return errs.BadRequest(MsgPlanNotFound)
	}
	if existing.Type == plan.Type {
		return errs.BadRequest(MsgAlreadyOnPlan)
	}
	if existing.Type != PlanFree {
		return errs.BadRequest(MsgUpgradeFromFreeOnly)
	}
	if !plan.HasAdditionalSeatsOption && upgrade.AdditionalSeats > 0 {
		return errs.BadRequest(MsgNoAdditionalSeats)
	}
	if plan.MaxAdditionalSeats != nil && upgrade.AdditionalSeats > *plan.MaxAdditionalSeats {
		return errs.BadRequest(fmt.Sprintf(msgPlanMaxAdditionalSeats, *plan.MaxAdditionalSeats))
	}

	total := plan.BaseSeats + upgrade.AdditionalSeats
	occupied, err := s.members.GetCountByOrganization(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("failed to count occupied seats: %w", err)
	}
	if occupied > total {
		return errs.BadRequest(fmt.Sprintf(msgSeatsFilled, occupied, total))
	}

	plan.apply(org, upgrade.AdditionalSeats)
	if upgrade.BusinessName != "" {
		org.Name = upgrade.BusinessName
	}
	if err := s.replaceAndUpdateCache(ctx, org); err != nil {
		return err
	}

	s.raise(ctx, ReferenceEvent{
		Type:           ReferenceUpgradePlan,
		OrganizationID: org.ID,
		PlanType:       plan.Type,
		PreviousPlan:   existing.Type,
		Seats:          org.Seats,
	})
	return nil
}

// replaceAndUpdateCache saves org and refreshes its cached ability. Cache
// failures are logged only.
func (s *Service) replaceAndUpdateCache(ctx context.Context, org *Organization) error {
	org.UpdatedAt = s.now().UTC()
	if err := s.orgs.Replace(ctx, org); err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	if s.abilities == nil {
		return nil
	}
	if err := s.abilities.UpsertOrganizationAbility(ctx, AbilityOf(org)); err != nil {
		s.logger.WithError(err).WithField("organization_id", org.ID).Warn("Failed to refresh organization ability")
	}
	return nil
}
