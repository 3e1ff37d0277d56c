package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// EventSystemUser identifies an automated actor for audit attribution.
type EventSystemUser string

const (
	SystemUserUnknown            EventSystemUser = "unknown"
	SystemUserSCIM               EventSystemUser = "scim"
	SystemUserDomainVerification EventSystemUser = "domain_verification"
	SystemUserPublicAPI          EventSystemUser = "public_api"
)

type actorKind int

const (
	actorNone actorKind = iota
	actorHuman
	actorSystem
)

// Actor is either a human user or a system process. Only system actors
// skip role checks; both are recorded in the audit trail.
type Actor struct {
	kind   actorKind
	userID uuid.UUID
	system EventSystemUser
}

// Human returns an actor for the user with the given id.
func Human(userID uuid.UUID) Actor {
	return Actor{kind: actorHuman, userID: userID}
}

// System returns an actor for an automated process.
func System(kind EventSystemUser) Actor {
	if kind == "" {
		kind = SystemUserUnknown
	}
	return Actor{kind: actorSystem, system: kind}
}

// IsHuman reports whether the actor is a human user.
func (a Actor) IsHuman() bool { return a.kind == actorHuman }

// IsSystem reports whether the actor is a system process.
func (a Actor) IsSystem() bool { return a.kind == actorSystem }

// UserID returns the user id of a human actor.
func (a Actor) UserID() (uuid.UUID, bool) {
	if a.kind != actorHuman {
		return uuid.Nil, false
	}
	return a.userID, true
}

// SystemUser returns the system kind of a system actor.
func (a Actor) SystemUser() (EventSystemUser, bool) {
	if a.kind != actorSystem {
		return "", false
	}
	return a.system, true
}

// Is reports whether a is the human with the given user id.
func (a Actor) Is(userID *uuid.UUID) bool {
	return a.kind == actorHuman && userID != nil && *userID == a.userID
}

func (a Actor) String() string {
	switch a.kind {
	case actorHuman:
		return fmt.Sprintf("user:%s", a.userID)
	case actorSystem:
		return fmt.Sprintf("system:%s", a.system)
	}
	return "anonymous"
}
