// Package orgs manages organization memberships and subscriptions.
//
// A membership (OrganizationUser) moves through the statuses Invited,
// Accepted, Confirmed and Revoked. Restoring a revoked member always returns
// it to Invited. Removal deletes the row.
//
// Every operation that can take a confirmed owner away (remove, revoke,
// demote) keeps at least one confirmed owner in the organization. The
// Service checks this against the owners it loaded, and the repository
// re-checks it inside the write transaction, returning
// ErrLastConfirmedOwner when a concurrent change won the race.
//
// Bulk operations (DeleteUsers, ConfirmUsers, RevokeUsers, RestoreUsers)
// return one bulk.Result per requested id in input order. Business
// rejections become that item's Error; infrastructure errors fail the call.
//
// Usage:
//
//	svc := orgs.NewService(orgs.Dependencies{
//		Organizations: orgRepo,
//		Members:       memberRepo,
//		Policies:      policyRepo,
//		Users:         userRepo,
//		TwoFactor:     twoFactor,
//		Mail:          mailer,
//		Events:        events,
//		InviteTokens:  tokens,
//		Logger:        logger,
//	})
//	results, err := svc.DeleteUsers(ctx, actor, orgID, ids)
package orgs
