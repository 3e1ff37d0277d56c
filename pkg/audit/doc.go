// Package audit records the organization membership audit trail and the
// usage reference events raised by the membership services.
//
// # Overview
//
// DBLogger implements orgs.EventService on Postgres. Every invite,
// confirmation, update, removal, revocation and restore is stored with the
// acting user, or the system process that acted, and the request id of the
// call that caused it. ReferenceLogger implements orgs.ReferenceEventService
// and keeps billing telemetry (invited users, plan upgrades, seat changes,
// deleted accounts) in the same database.
//
// # Usage Example
//
//	events, err := audit.NewDBLogger(db)
//	if err != nil {
//		return err
//	}
//	svc := orgs.NewService(orgs.Dependencies{Events: events, ...})
//
// The event log is read back through Handlers:
//
//	GET /organizations/{orgId}/events?type=organization_user_confirmed&start=...&limit=50
//
// which requires the AccessEventLogs capability in that organization.
package audit
