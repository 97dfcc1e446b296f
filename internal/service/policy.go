package service

import (
	"jobtrack/internal/model"
)

// Capability decision tables for task transitions. Approve and reject share
// one rule; keeping it in a single function avoids the authorization branch
// drifting between the two operations.

// canApproveOrReject:
//   - super-admin-type tasks require a super-admin, full stop.
//   - job-auto tasks are approved by admins and super-admins.
//   - otherwise the assigner approves their own task; if the task has no
//     assigner (system-generated), admins and super-admins may.
func canApproveOrReject(actor Actor, task *model.Task) bool {
	switch task.Type {
	case model.TaskTypeSuperAdmin:
		return actor.Role == model.RoleSuperAdmin
	case model.TaskTypeJobAuto:
		return actor.IsAdmin()
	}
	if task.AssignedBy != nil {
		return *task.AssignedBy == actor.ID
	}
	return actor.IsAdmin()
}

// canDelete:
//   - super-admins delete anything.
//   - admins delete anything except super-admin-type tasks.
//   - an assigner may delete their own manual or peer task while it is
//     still pending. Job-auto tasks stay admin-only; deleting one severs
//     the pipeline chain.
func canDelete(actor Actor, task *model.Task) bool {
	if actor.Role == model.RoleSuperAdmin {
		return true
	}
	if actor.Role == model.RoleAdmin {
		return task.Type != model.TaskTypeSuperAdmin
	}
	if task.Type == model.TaskTypeManual || task.Type == model.TaskTypeUser {
		return task.AssignedBy != nil && *task.AssignedBy == actor.ID &&
			task.Status == model.TaskStatusPending
	}
	return false
}

// canCreateType gates manual task creation by requested task type.
func canCreateType(actor Actor, taskType string) bool {
	switch taskType {
	case model.TaskTypeSuperAdmin:
		return actor.Role == model.RoleSuperAdmin
	case model.TaskTypeAdmin:
		return actor.IsAdmin()
	case model.TaskTypeManual:
		return actor.IsAdmin()
	case model.TaskTypeUser:
		return true
	default:
		return false
	}
}
