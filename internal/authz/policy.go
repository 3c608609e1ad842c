// Package authz holds the single project-access decision function. Every
// handler that touches a project goes through Can; there is no other
// place where ownership, sharing, or the admin override are interpreted.
package authz

import (
	"github.com/auditbench/auditbench/internal/database/models"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionAddNote Action = "add-note"
	ActionDelete  Action = "delete"
	ActionShare   Action = "share"
)

// Can reports whether the actor may perform action on the project.
// The admin role overrides everything; ownership and the share list are
// only consulted for non-admins. Edit permission covers content
// mutations but never delete or re-share.
func Can(actor *models.User, project *models.Project, action Action) bool {
	if actor == nil || project == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if project.OwnerID == actor.ID {
		return true
	}

	entry := project.SharedEntry(actor.ID)

	switch action {
	case ActionRead:
		return entry != nil
	case ActionUpdate, ActionAddNote:
		return entry != nil && entry.Permission == models.PermissionEdit
	case ActionDelete, ActionShare:
		return false
	default:
		return false
	}
}
