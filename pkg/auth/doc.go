// Package auth describes who is acting in a request and what they may do.
//
// # Overview
//
// An Actor is either a human user or a system process (SCIM, domain
// verification, the public API). System actors are recorded in the audit
// trail but never run through role checks.
//
// An ActorContext is the capability snapshot the presentation layer builds
// once per request from verified claims:
//
//	ac := auth.NewActorContext(auth.Human(userID), auth.ClientTypeUser,
//		auth.Membership{OrganizationID: orgID, Type: auth.MemberTypeCustom,
//			Permissions: auth.Permissions{ManageUsers: true}},
//	)
//	ac.ManageUsers(orgID)        // true
//	ac.OrganizationAdmin(orgID)  // false
//
// # Roles
//
// MemberType orders Owner > Admin > Manager > Custom > User. A Role pairs a
// member type with the custom Permissions a Custom member holds.
//
// # Tokens
//
// TokenGenerator creates service account client secrets (stored hashed) and
// formats access tokens as 0.<id>.<secret>:<key>. InviteTokenFactory signs
// expiring HS256 invite tokens for organization invitations.
package auth
