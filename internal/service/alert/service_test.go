package alert

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/memory"
	"github.com/gilliankerr/KoNote-sub000/internal/service/access"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

type fixture struct {
	store   *memory.Store
	service *Service

	program      *model.Program
	staff        *model.User
	pm           *model.User
	receptionist *model.User
	executive    *model.User
	client       *model.ClientFile
	alert        *model.Alert
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	key, err := security.GenerateFieldKey()
	require.NoError(t, err)
	encryptor, err := security.NewFieldEncryptor(key)
	require.NoError(t, err)

	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	resolver := access.NewResolver(&memory.ProgramRepo{S: store}, &memory.ClientRepo{S: store})
	auditor := audit.NewService(&memory.AuditRepo{S: store}, log, nil)

	f := &fixture{
		store:   store,
		service: NewService(&memory.AlertRepo{S: store}, resolver, auditor, encryptor, log, nil),
	}

	f.program = &model.Program{Base: model.Base{ID: uuid.New()}, Name: "Housing", Status: model.ProgramStatusActive}
	store.Programs[f.program.ID] = f.program

	f.staff = f.user("staff1", "Staff One")
	f.pm = f.user("pm1", "PM One")
	f.receptionist = f.user("recep1", "Reception One")
	f.executive = f.user("exec1", "Exec One")
	f.grant(f.staff, model.RoleStaff)
	f.grant(f.pm, model.RoleProgramManager)
	f.grant(f.receptionist, model.RoleReceptionist)
	f.grant(f.executive, model.RoleExecutive)

	f.client = &model.ClientFile{Base: model.Base{ID: uuid.New()}, Status: model.ClientStatusActive}
	store.Clients[f.client.ID] = f.client
	store.Enrolments = append(store.Enrolments, &model.Enrolment{
		Base:         model.Base{ID: uuid.New()},
		ClientFileID: f.client.ID,
		ProgramID:    f.program.ID,
		Status:       model.Enrolled,
	})

	created, err := f.service.Create(context.Background(), f.staff, f.client.ID, "Safety concern documented.")
	require.NoError(t, err)
	f.alert = created
	// Start each test from a clean audit trail.
	store.AuditRecords = nil
	return f
}

func (f *fixture) user(username, display string) *model.User {
	u := &model.User{
		Base:        model.Base{ID: uuid.New()},
		Username:    username,
		DisplayName: display,
		IsActive:    true,
	}
	f.store.Users[u.ID] = u
	return u
}

func (f *fixture) grant(user *model.User, role model.Role) {
	f.store.Grants = append(f.store.Grants, &model.UserProgramRole{
		Base:      model.Base{ID: uuid.New()},
		UserID:    user.ID,
		ProgramID: f.program.ID,
		Role:      role,
		Status:    model.GrantActive,
	})
}

func forbidden(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestAlertCreationTagsAuthorProgram(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, f.staff.ID, f.alert.AuthorID)
	assert.Equal(t, f.program.ID, f.alert.AuthorProgramID)
	assert.Equal(t, model.AlertActive, f.alert.Status)

	views, err := f.service.ListForClient(context.Background(), f.staff, f.client.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Safety concern documented.", views[0].Content)
}

func TestStaffCannotCancelDirectly(t *testing.T) {
	f := newFixture(t)
	err := f.service.CancelDirect(context.Background(), f.staff, f.alert.ID, "all clear")
	forbidden(t, err)

	assert.Equal(t, model.AlertActive, f.store.Alerts[f.alert.ID].Status)
}

func TestStaffCanRecommend(t *testing.T) {
	f := newFixture(t)
	rec, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "stable for 6 weeks")
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationPending, rec.Status)
	assert.Equal(t, f.staff.ID, rec.RecommendedBy)

	require.Len(t, f.store.AuditRecords, 1)
	assert.Equal(t, model.AuditActionRecommendCancel, f.store.AuditRecords[0].Action)
}

func TestRecommendationRequiresAssessment(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
}

func TestPMCannotRecommend(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RecommendCancellation(context.Background(), f.pm, f.alert.ID, "looks fine")
	forbidden(t, err)
}

func TestDuplicatePendingBlockedUntilResolved(t *testing.T) {
	f := newFixture(t)
	first, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "first")
	require.NoError(t, err)

	_, err = f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "second")
	assert.ErrorIs(t, err, ErrDuplicatePending)

	// Once rejected, a fresh recommendation is allowed.
	err = f.service.Review(context.Background(), f.pm, first.ID, false, "not convinced")
	require.NoError(t, err)

	_, err = f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "third")
	assert.NoError(t, err)
}

func TestRejectRequiresNote(t *testing.T) {
	f := newFixture(t)
	rec, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "stable")
	require.NoError(t, err)

	err = f.service.Review(context.Background(), f.pm, rec.ID, false, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
	assert.Equal(t, model.RecommendationPending, f.store.Recommendations[rec.ID].Status)

	err = f.service.Review(context.Background(), f.pm, rec.ID, false, "reason")
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationRejected, f.store.Recommendations[rec.ID].Status)
	assert.Equal(t, model.AlertActive, f.store.Alerts[f.alert.ID].Status)
}

func TestApproveCancelsAlertWithAuditTrail(t *testing.T) {
	f := newFixture(t)
	rec, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "stable for 6 weeks")
	require.NoError(t, err)

	// The reviewing PM sees the decrypted assessment.
	view, err := f.service.PendingForReview(context.Background(), f.pm, f.alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "stable for 6 weeks", view.Assessment)

	err = f.service.Review(context.Background(), f.pm, rec.ID, true, "")
	require.NoError(t, err)

	assert.Equal(t, model.AlertCancelled, f.store.Alerts[f.alert.ID].Status)
	assert.Equal(t, model.RecommendationApproved, f.store.Recommendations[rec.ID].Status)
	assert.Equal(t, f.pm.ID, *f.store.Recommendations[rec.ID].ReviewedBy)

	var cancelRecord *model.AuditRecord
	for _, record := range f.store.AuditRecords {
		if record.Action == model.AuditActionCancel {
			cancelRecord = record
		}
	}
	require.NotNil(t, cancelRecord)
	assert.Equal(t, model.AuditResourceAlert, cancelRecord.ResourceType)
	assert.Equal(t, f.alert.ID, cancelRecord.ResourceID)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(cancelRecord.Metadata, &metadata))
	assert.Equal(t, "approved", metadata["review_action"])
}

func TestReviewAfterResolutionRedirects(t *testing.T) {
	f := newFixture(t)
	rec, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "stable")
	require.NoError(t, err)
	require.NoError(t, f.service.Review(context.Background(), f.pm, rec.ID, true, ""))

	err = f.service.Review(context.Background(), f.pm, rec.ID, false, "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestPMDirectCancel(t *testing.T) {
	f := newFixture(t)
	err := f.service.CancelDirect(context.Background(), f.pm, f.alert.ID, "resolved in case review")
	require.NoError(t, err)
	assert.Equal(t, model.AlertCancelled, f.store.Alerts[f.alert.ID].Status)
	assert.Equal(t, "resolved in case review", f.store.Alerts[f.alert.ID].StatusReason)

	// Cancelling twice is a validation error, not a silent no-op.
	err = f.service.CancelDirect(context.Background(), f.pm, f.alert.ID, "again")
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
}

func TestReceptionistAndExecutiveDeniedEverywhere(t *testing.T) {
	f := newFixture(t)
	for _, actor := range []*model.User{f.receptionist, f.executive} {
		_, err := f.service.RecommendCancellation(context.Background(), actor, f.alert.ID, "x")
		forbidden(t, err)

		err = f.service.CancelDirect(context.Background(), actor, f.alert.ID, "x")
		forbidden(t, err)

		_, err = f.service.PendingForReview(context.Background(), actor, f.alert.ID)
		forbidden(t, err)
	}
}

func TestUnknownAlertLooksLikeDenial(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RecommendCancellation(context.Background(), f.staff, uuid.New(), "x")
	forbidden(t, err)
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	f := newFixture(t)
	f.store.FailAudit = true

	_, err := f.service.RecommendCancellation(context.Background(), f.staff, f.alert.ID, "stable")
	require.Error(t, err)
	assert.Empty(t, f.store.Recommendations, "mutation must not survive a failed audit write")

	err = f.service.CancelDirect(context.Background(), f.pm, f.alert.ID, "x")
	require.Error(t, err)
	assert.Equal(t, model.AlertActive, f.store.Alerts[f.alert.ID].Status)
}
