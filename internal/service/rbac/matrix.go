// Package rbac holds the static role/permission matrix. The matrix is
// the single source of truth for what a role may do; it is immutable at
// runtime and safe to read from any number of goroutines.
package rbac

import (
	"github.com/gilliankerr/KoNote-sub000/internal/model"
)

// matrix maps (role, permission) to a decision. Every pair is listed
// explicitly: a missing entry is a programming error surfaced by
// TestMatrixIsExhaustive, never an implicit allow.
var matrix = map[model.Role]map[model.Permission]model.Decision{
	model.RoleReceptionist: {
		model.PermClientView:           model.Scoped,
		model.PermClientEdit:           model.Deny,
		model.PermNoteCreate:           model.Deny,
		model.PermNoteView:             model.Deny,
		model.PermPlanEdit:             model.Deny,
		model.PermEventCreate:          model.Deny,
		model.PermAlertCreate:          model.Deny,
		model.PermAlertCancel:          model.Deny,
		model.PermAlertRecommendCancel: model.Deny,
		model.PermAlertReview:          model.Deny,
		model.PermReportView:           model.Deny,
		model.PermExportCreate:         model.Deny,
	},
	model.RoleStaff: {
		model.PermClientView:           model.Scoped,
		model.PermClientEdit:           model.Scoped,
		model.PermNoteCreate:           model.Scoped,
		model.PermNoteView:             model.Scoped,
		model.PermPlanEdit:             model.Scoped,
		model.PermEventCreate:          model.Scoped,
		model.PermAlertCreate:          model.Scoped,
		model.PermAlertCancel:          model.Deny,
		model.PermAlertRecommendCancel: model.Scoped,
		model.PermAlertReview:          model.Deny,
		model.PermReportView:           model.Deny,
		model.PermExportCreate:         model.Deny,
	},
	model.RoleProgramManager: {
		model.PermClientView:           model.Scoped,
		model.PermClientEdit:           model.Scoped,
		model.PermNoteCreate:           model.Scoped,
		model.PermNoteView:             model.Scoped,
		model.PermPlanEdit:             model.Scoped,
		model.PermEventCreate:          model.Scoped,
		model.PermAlertCreate:          model.Scoped,
		model.PermAlertCancel:          model.Scoped,
		model.PermAlertRecommendCancel: model.Deny,
		model.PermAlertReview:          model.Scoped,
		model.PermReportView:           model.Scoped,
		model.PermExportCreate:         model.Scoped,
	},
	model.RoleExecutive: {
		model.PermClientView:           model.Deny,
		model.PermClientEdit:           model.Deny,
		model.PermNoteCreate:           model.Deny,
		model.PermNoteView:             model.Deny,
		model.PermPlanEdit:             model.Deny,
		model.PermEventCreate:          model.Deny,
		model.PermAlertCreate:          model.Deny,
		model.PermAlertCancel:          model.Deny,
		model.PermAlertRecommendCancel: model.Deny,
		model.PermAlertReview:          model.Deny,
		// Executives read aggregates, not client records; report.view
		// carries no per-record target, hence Allow rather than Scoped.
		model.PermReportView:   model.Allow,
		model.PermExportCreate: model.Deny,
	},
}

// Decide returns the matrix entry for (role, permission). Unknown roles
// and permissions deny.
func Decide(role model.Role, perm model.Permission) model.Decision {
	perms, ok := matrix[role]
	if !ok {
		return model.Deny
	}
	decision, ok := perms[perm]
	if !ok {
		return model.Deny
	}
	return decision
}
