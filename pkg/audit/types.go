package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// Event is a stored organization user event
type Event struct {
	ID                 int64                 `json:"id"`
	Type               orgs.EventType        `json:"type"`
	OrganizationID     uuid.UUID             `json:"organization_id"`
	OrganizationUserID uuid.UUID             `json:"organization_user_id"`
	UserID             *uuid.UUID            `json:"user_id,omitempty"`
	ActingUserID       *uuid.UUID            `json:"acting_user_id,omitempty"`
	SystemUser         *auth.EventSystemUser `json:"system_user,omitempty"`
	RequestID          string                `json:"request_id,omitempty"`
	Date               time.Time             `json:"date"`
}

// SearchFilter selects events of one organization
type SearchFilter struct {
	OrganizationID     uuid.UUID
	OrganizationUserID *uuid.UUID
	Types              []orgs.EventType
	Start              *time.Time
	End                *time.Time
	Limit              int
	Offset             int
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// limit clamps the requested page size
func (f SearchFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultSearchLimit
	case f.Limit > maxSearchLimit:
		return maxSearchLimit
	}
	return f.Limit
}

// newEvent flattens a service event into a row
func newEvent(e orgs.UserEvent, requestID string) Event {
	ev := Event{
		Type:      e.Type,
		RequestID: requestID,
		Date:      e.Date,
	}
	if ou := e.OrganizationUser; ou != nil {
		ev.OrganizationID = ou.OrganizationID
		ev.OrganizationUserID = ou.ID
		ev.UserID = ou.UserID
	}
	if id, ok := e.Actor.UserID(); ok {
		ev.ActingUserID = &id
	}
	if kind, ok := e.Actor.SystemUser(); ok {
		ev.SystemUser = &kind
	}
	if ev.Date.IsZero() {
		ev.Date = time.Now().UTC()
	}
	return ev
}
