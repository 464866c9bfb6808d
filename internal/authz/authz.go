// Package authz holds the authorization policy for user management and the
// admin disk report. Decisions are pure functions over the acting user and an
// optional target; nothing here touches transport or storage, so every rule is
// unit-testable on its own.
//
// Missing, soft-deleted, or unknown-role actors always deny.
package authz

import "github.com/cloudvault/backend/internal/models"

type Operation string

const (
	OpListUsers            Operation = "users.list"
	OpReadUser             Operation = "users.read"
	OpCreateUser           Operation = "users.create"
	OpUpdateUser           Operation = "users.update"
	OpDeleteUser           Operation = "users.delete"
	OpViewDiskReport       Operation = "disk.report"
	OpDownloadReportedFile Operation = "disk.download"
)

// capabilities is the role × operation decision matrix for operations whose
// outcome does not depend on the target. Target-dependent rules (who may
// manage whom, role changes) layer on top via the Can* guards below.
var capabilities = map[Operation]map[models.UserRole]bool{
	OpListUsers: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpReadUser: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpCreateUser: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpUpdateUser: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpDeleteUser: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpViewDiskReport: {
		models.UserRoleAdmin:      true,
		models.UserRoleSuperadmin: true,
	},
	OpDownloadReportedFile: {
		models.UserRoleSuperadmin: true,
	},
}

// actorValid reports whether the actor may be the subject of any decision.
func actorValid(actor *models.User) bool {
	if actor == nil || actor.DeletedAt.Valid {
		return false
	}
	return actor.Role.Valid()
}

// Allowed checks the capability matrix for a target-independent operation.
func Allowed(actor *models.User, op Operation) bool {
	if !actorValid(actor) {
		return false
	}
	return capabilities[op][actor.Role]
}

// CanManage reports whether the actor may create, update, or soft-delete an
// account holding targetRole. Admins manage plain users only; superadmins
// manage everyone.
func CanManage(actor *models.User, targetRole models.UserRole) bool {
	if !actorValid(actor) {
		return false
	}
	switch actor.Role {
	case models.UserRoleSuperadmin:
		return true
	case models.UserRoleAdmin:
		return targetRole == models.UserRoleUser
	default:
		return false
	}
}

// CanAssignRole reports whether the actor may hand out the given role when
// creating or re-roling an account.
func CanAssignRole(actor *models.User, role models.UserRole) bool {
	if !actorValid(actor) || !role.Valid() {
		return false
	}
	switch actor.Role {
	case models.UserRoleSuperadmin:
		return true
	case models.UserRoleAdmin:
		return role == models.UserRoleUser
	default:
		return false
	}
}

// CanChangeRole decides a role change on target. The self-change guard runs
// before everything else: no account may alter its own role, superadmin
// included.
func CanChangeRole(actor, target *models.User) bool {
	if !actorValid(actor) || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	return actor.Role == models.UserRoleSuperadmin
}

// CanDelete decides a soft delete. Self-deletion is not an exposed operation.
func CanDelete(actor, target *models.User) bool {
	if !actorValid(actor) || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	return CanManage(actor, target.Role)
}

// MaskFileNames reports whether reported file names must be redacted for this
// viewer. Only superadmins see originals.
func MaskFileNames(actor *models.User) bool {
	return actor == nil || actor.Role != models.UserRoleSuperadmin
}
