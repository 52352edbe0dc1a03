package user

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilliankerr/KoNote-sub000/internal/email"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/memory"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	"github.com/gilliankerr/KoNote-sub000/pkg/auth"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

type recordingMailer struct {
	to    []string
	codes []string
}

var _ email.Service = (*recordingMailer)(nil)

func (m *recordingMailer) SendInvite(ctx context.Context, to, code, role string) error {
	m.to = append(m.to, to)
	m.codes = append(m.codes, code)
	return nil
}

type fixture struct {
	store     *memory.Store
	svc       *Service
	tokens    auth.TokenService
	mailer    *recordingMailer
	admin     *model.User
	encryptor security.FieldEncryptor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	auditor := audit.NewService(&memory.AuditRepo{S: store}, log, nil)

	key, err := security.GenerateFieldKey()
	require.NoError(t, err)
	encryptor, err := security.NewFieldEncryptor(key)
	require.NoError(t, err)

	tokens := auth.NewTokenService("test-secret-do-not-reuse", time.Hour)
	mailer := &recordingMailer{}

	admin := &model.User{Base: model.Base{ID: uuid.New()}, Username: "admin", DisplayName: "Admin", IsAdmin: true, IsActive: true}
	store.Users[admin.ID] = admin

	return &fixture{
		store:     store,
		svc:       NewService(&memory.UserRepo{S: store}, tokens, security.NewBcryptHasher(4), mailer, auditor, encryptor, log),
		tokens:    tokens,
		mailer:    mailer,
		admin:     admin,
		encryptor: encryptor,
	}
}

func TestLoginFailsUniformly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provisioned, err := f.svc.Provision(ctx, f.admin, "jane", "Jane", "jane@example.org", "correct horse battery", false)
	require.NoError(t, err)

	_, _, unknownErr := f.svc.Login(ctx, &model.LoginRequest{Username: "nobody", Password: "whatever at all"})
	_, _, wrongErr := f.svc.Login(ctx, &model.LoginRequest{Username: "jane", Password: "not the password"})

	provisioned.IsActive = false
	_, _, inactiveErr := f.svc.Login(ctx, &model.LoginRequest{Username: "jane", Password: "correct horse battery"})

	for _, err := range []error{unknownErr, wrongErr, inactiveErr} {
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
		assert.Equal(t, "unauthorized", err.(*apperrors.AppError).Message)
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Provision(ctx, f.admin, "jane", "Jane", "jane@example.org", "correct horse battery", true)
	require.NoError(t, err)

	token, user, err := f.svc.Login(ctx, &model.LoginRequest{Username: "jane", Password: "correct horse battery"})
	require.NoError(t, err)

	claims, err := f.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.True(t, claims.IsDemo)
	assert.Equal(t, uuid.Nil, claims.ImpersonatorID)
	assert.NotNil(t, f.store.Users[user.ID].LastLoginAt)
}

func TestProvisionEncryptsEmailAndRejectsShortPasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Provision(ctx, f.admin, "shorty", "Shorty", "s@example.org", "too short", false)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))

	user, err := f.svc.Provision(ctx, f.admin, "jane", "Jane", "jane@example.org", "correct horse battery", false)
	require.NoError(t, err)
	assert.NotContains(t, string(user.EmailEncrypted), "jane@example.org")
	assert.NotContains(t, string(user.PasswordHash), "correct horse battery")
}

func TestInviteFlowCreatesUserWithGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	programID := uuid.New()
	invite, err := f.svc.CreateInvite(ctx, f.admin, &model.CreateInviteRequest{
		Role:     string(model.RoleStaff),
		Email:    "new@example.org",
		Programs: []string{programID.String()},
	})
	require.NoError(t, err)

	require.Len(t, f.mailer.to, 1)
	assert.Equal(t, "new@example.org", f.mailer.to[0])
	assert.Equal(t, invite.Code.String(), f.mailer.codes[0])

	user, err := f.svc.AcceptInvite(ctx, &model.AcceptInviteRequest{
		Code:        invite.Code.String(),
		Username:    "newbie",
		DisplayName: "New Person",
		Password:    "a long enough password",
	})
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)

	var granted bool
	for _, grant := range f.store.Grants {
		if grant.UserID == user.ID && grant.ProgramID == programID && grant.Role == model.RoleStaff {
			granted = true
		}
	}
	assert.True(t, granted, "accepting the invite must create its program grants")

	// Single use: the same code cannot provision a second account.
	_, err = f.svc.AcceptInvite(ctx, &model.AcceptInviteRequest{
		Code:        invite.Code.String(),
		Username:    "other",
		DisplayName: "Other",
		Password:    "a long enough password",
	})
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestAuditFailureRollsBackProvisionAndInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailAudit = true

	_, err := f.svc.Provision(ctx, f.admin, "jane", "Jane", "jane@example.org", "correct horse battery", false)
	require.Error(t, err)
	assert.Len(t, f.store.Users, 1, "only the admin row may exist after a failed audit write")

	_, err = f.svc.CreateInvite(ctx, f.admin, &model.CreateInviteRequest{
		Role:  string(model.RoleStaff),
		Email: "new@example.org",
	})
	require.Error(t, err)
	assert.Empty(t, f.store.Invites)
	assert.Empty(t, f.mailer.to, "no mail may leave when the invite did not commit")
}

func TestInviteEmailSurvivesEncryptedAtRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &memory.UserRepo{S: f.store}

	invite, err := f.svc.CreateInvite(ctx, f.admin, &model.CreateInviteRequest{
		Role:  string(model.RoleStaff),
		Email: "new@example.org",
	})
	require.NoError(t, err)

	// The stored invite row carries the address as ciphertext only.
	stored, err := repo.GetInviteByCode(ctx, invite.Code)
	require.NoError(t, err)
	require.NotEmpty(t, stored.EmailEncrypted)
	assert.NotContains(t, string(stored.EmailEncrypted), "new@example.org")

	plaintext, err := f.encryptor.Decrypt(stored.EmailEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "new@example.org", plaintext)

	user, err := f.svc.AcceptInvite(ctx, &model.AcceptInviteRequest{
		Code:        invite.Code.String(),
		Username:    "newbie",
		DisplayName: "New Person",
		Password:    "a long enough password",
	})
	require.NoError(t, err)

	// The provisioned account inherits the address end to end.
	fetched, err := repo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, fetched.EmailEncrypted)
	userEmail, err := f.encryptor.Decrypt(fetched.EmailEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "new@example.org", userEmail)
}

func TestExpiredInviteRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invite, err := f.svc.CreateInvite(ctx, f.admin, &model.CreateInviteRequest{
		Role:  string(model.RoleStaff),
		Email: "late@example.org",
	})
	require.NoError(t, err)
	invite.ExpiresAt = time.Now().Add(-time.Hour)

	_, err = f.svc.AcceptInvite(ctx, &model.AcceptInviteRequest{
		Code:        invite.Code.String(),
		Username:    "late",
		DisplayName: "Late",
		Password:    "a long enough password",
	})
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestInviteRequiresAdminAndValidRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	staff := &model.User{Base: model.Base{ID: uuid.New()}, Username: "staff", IsActive: true}
	f.store.Users[staff.ID] = staff

	_, err := f.svc.CreateInvite(ctx, staff, &model.CreateInviteRequest{Role: string(model.RoleStaff), Email: "x@example.org"})
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	_, err = f.svc.CreateInvite(ctx, f.admin, &model.CreateInviteRequest{Role: "owner", Email: "x@example.org"})
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
}

func TestImpersonateDemoOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	demo, err := f.svc.Provision(ctx, f.admin, "demo", "Demo", "d@example.org", "a long enough password", true)
	require.NoError(t, err)
	real, err := f.svc.Provision(ctx, f.admin, "real", "Real", "r@example.org", "a long enough password", false)
	require.NoError(t, err)

	token, err := f.svc.Impersonate(ctx, f.admin, demo.ID)
	require.NoError(t, err)

	claims, err := f.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, demo.ID, claims.UserID)
	assert.Equal(t, f.admin.ID, claims.ImpersonatorID)
	assert.True(t, claims.IsDemo)

	_, err = f.svc.Impersonate(ctx, f.admin, real.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	demo.IsActive = false
	_, err = f.svc.Impersonate(ctx, f.admin, demo.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	_, err = f.svc.Impersonate(ctx, demo, f.admin.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestImpersonationIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	demo, err := f.svc.Provision(ctx, f.admin, "demo", "Demo", "d@example.org", "a long enough password", true)
	require.NoError(t, err)
	f.store.AuditRecords = nil

	_, err = f.svc.Impersonate(ctx, f.admin, demo.ID)
	require.NoError(t, err)

	require.Len(t, f.store.AuditRecords, 1)
	rec := f.store.AuditRecords[0]
	assert.Equal(t, model.AuditActionImpersonate, rec.Action)
	assert.Equal(t, f.admin.ID, rec.ActorID)
	assert.Equal(t, demo.ID, rec.ResourceID)

	// Fail closed: no audit record means no token.
	f.store.FailAudit = true
	_, err = f.svc.Impersonate(ctx, f.admin, demo.ID)
	require.Error(t, err)
}
