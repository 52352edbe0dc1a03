package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
)

func TestMatrixIsExhaustive(t *testing.T) {
	for _, role := range model.Roles() {
		perms, ok := matrix[role]
		assert.True(t, ok, "role %s missing from matrix", role)
		for _, perm := range model.Permissions() {
			_, ok := perms[perm]
			assert.True(t, ok, "no entry for (%s, %s)", role, perm)
		}
	}
}

func TestUnknownInputsDeny(t *testing.T) {
	assert.Equal(t, model.Deny, Decide(model.Role("superuser"), model.PermClientView))
	assert.Equal(t, model.Deny, Decide(model.RoleStaff, model.Permission("client.delete")))
}

func TestAlertCancellationIsTwoPerson(t *testing.T) {
	// Staff may propose but never cancel; PMs cancel and review but do
	// not propose; receptionists and executives touch none of it.
	assert.Equal(t, model.Scoped, Decide(model.RoleStaff, model.PermAlertRecommendCancel))
	assert.Equal(t, model.Deny, Decide(model.RoleStaff, model.PermAlertCancel))
	assert.Equal(t, model.Deny, Decide(model.RoleStaff, model.PermAlertReview))

	assert.Equal(t, model.Scoped, Decide(model.RoleProgramManager, model.PermAlertCancel))
	assert.Equal(t, model.Scoped, Decide(model.RoleProgramManager, model.PermAlertReview))
	assert.Equal(t, model.Deny, Decide(model.RoleProgramManager, model.PermAlertRecommendCancel))

	for _, role := range []model.Role{model.RoleReceptionist, model.RoleExecutive} {
		for _, perm := range []model.Permission{
			model.PermAlertRecommendCancel, model.PermAlertReview, model.PermAlertCancel,
		} {
			assert.Equal(t, model.Deny, Decide(role, perm), "(%s, %s)", role, perm)
		}
	}
}

func TestScopedVersusAllow(t *testing.T) {
	// Allow is reserved for operations without a client-record target.
	assert.Equal(t, model.Allow, Decide(model.RoleExecutive, model.PermReportView))

	for _, role := range model.Roles() {
		for _, perm := range model.Permissions() {
			if perm == model.PermReportView {
				continue
			}
			assert.NotEqual(t, model.Allow, Decide(role, perm),
				"record-targeting permission (%s, %s) must be Scoped or Deny", role, perm)
		}
	}
}

func TestRoleRankOrdering(t *testing.T) {
	assert.Less(t, model.RoleReceptionist.Rank(), model.RoleStaff.Rank())
	assert.Less(t, model.RoleStaff.Rank(), model.RoleProgramManager.Rank())
	assert.Less(t, model.RoleProgramManager.Rank(), model.RoleExecutive.Rank())
	assert.Zero(t, model.Role("nobody").Rank())
}
