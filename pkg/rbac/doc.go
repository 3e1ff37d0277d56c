// Package rbac decides who may do what inside an organization.
//
// # Role hierarchy
//
// Members are ordered Owner > Admin > Manager > Custom > User. CanManage is
// the table of which roles may manage which member types; Custom members
// that hold the ManageUsers permission may manage everything below Admin.
// ValidateMemberUpdate applies the table to invites and edits and also
// prevents Custom members from granting permissions they do not hold.
//
// # Access evaluation
//
// Evaluator is a pure function of an auth.ActorContext and a Request:
//
//	d := evaluator.Evaluate(actorCtx, rbac.Request{
//		Resource:       rbac.ResourceProject,
//		Operation:      rbac.OperationDelete,
//		OrganizationID: orgID,
//		Access:         rbac.Access{Read: true, Write: false},
//	})
//	if !d.Allowed {
//		// d.Reason == "access denied"
//	}
//
// Secrets manager resources require AccessSecretsManager for the
// organization. Owners and admins then skip grants (AccessClientNoAccessCheck);
// everyone else needs the Read or Write grant the caller resolved from
// storage. System actors bypass organization user checks entirely.
package rbac
