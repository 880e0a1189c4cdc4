package auth

import "strings"

// Role names understood by the policy. Stored uppercase on users.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// Operation enumerates everything the policy can be asked about.
type Operation string

const (
	OpSearchEvents  Operation = "events:search"
	OpGetEvent      Operation = "events:get"
	OpListUpcoming  Operation = "events:upcoming"
	OpCreateEvent   Operation = "events:create"
	OpUpdateEvent   Operation = "events:update"
	OpDeleteEvent   Operation = "events:delete"
	OpApproveEvents Operation = "events:approve"
	OpListPending   Operation = "events:pending"
	OpFetchExternal Operation = "events:fetch-external"

	OpReadOwnProfile   Operation = "users:read-own"
	OpUpdateOwnProfile Operation = "users:update-own"
	OpAdminUsers       Operation = "users:admin"
)

// Policy maps (operation, actor) to permit/deny. It is evaluated before any
// side effect; a deny surfaces as 403.
type Policy struct {
	// EnforceEventOwnership restricts event updates to the creator (admins
	// excepted). Historically any authenticated user could edit any event, so
	// the default keeps that behavior.
	EnforceEventOwnership bool
}

// Allowed decides the operation for an actor with the given role set.
// ownerID is the owning user of the target resource where relevant, zero
// otherwise. actorID is zero for anonymous callers.
func (p Policy) Allowed(op Operation, roles []string, ownerID, actorID int64) bool {
	switch op {
	case OpSearchEvents, OpGetEvent, OpListUpcoming:
		return true
	case OpCreateEvent:
		return actorID != 0
	case OpUpdateEvent:
		if actorID == 0 {
			return false
		}
		if hasRole(roles, RoleAdmin) {
			return true
		}
		if p.EnforceEventOwnership && ownerID != 0 {
			// With a zero ownerID the owner is not known at the gate; the
			// workflow re-checks against the loaded record.
			return ownerID == actorID
		}
		return true
	case OpDeleteEvent, OpFetchExternal, OpAdminUsers:
		return hasRole(roles, RoleAdmin)
	case OpApproveEvents, OpListPending:
		return hasRole(roles, RoleAdmin) || hasRole(roles, RoleModerator)
	case OpReadOwnProfile, OpUpdateOwnProfile:
		return actorID != 0 && actorID == ownerID
	default:
		return false
	}
}

func hasRole(roles []string, wanted string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), wanted) {
			return true
		}
	}
	return false
}

// IsAdmin is a convenience for handlers that branch on admin privileges.
func IsAdmin(roles []string) bool {
	return hasRole(roles, RoleAdmin)
}
