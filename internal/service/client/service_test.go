package client

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/memory"
	"github.com/gilliankerr/KoNote-sub000/internal/service/access"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

type fixture struct {
	store   *memory.Store
	service *Service
	program *model.Program
	staff   *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	key, err := security.GenerateFieldKey()
	require.NoError(t, err)
	encryptor, err := security.NewFieldEncryptor(key)
	require.NoError(t, err)

	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	programs := &memory.ProgramRepo{S: store}
	clients := &memory.ClientRepo{S: store}
	resolver := access.NewResolver(programs, clients)
	auditor := audit.NewService(&memory.AuditRepo{S: store}, log, nil)

	f := &fixture{
		store:   store,
		service: NewService(clients, programs, resolver, auditor, encryptor, log, nil),
	}
	f.program = &model.Program{Base: model.Base{ID: uuid.New()}, Name: "Housing", Status: model.ProgramStatusActive}
	store.Programs[f.program.ID] = f.program

	f.staff = &model.User{Base: model.Base{ID: uuid.New()}, Username: "staff1", DisplayName: "Staff One", IsActive: true}
	store.Users[f.staff.ID] = f.staff
	store.Grants = append(store.Grants, &model.UserProgramRole{
		Base: model.Base{ID: uuid.New()}, UserID: f.staff.ID, ProgramID: f.program.ID,
		Role: model.RoleStaff, Status: model.GrantActive,
	})
	return f
}

func TestCreateEncryptsAtRest(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{
		FirstName: "Jane", LastName: "Doe", Phone: "555-0100",
	}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)
	assert.Equal(t, "Jane", created.FirstName)

	stored := f.store.Clients[created.ID]
	assert.NotContains(t, string(stored.FirstNameEncrypted), "Jane")
	assert.NotContains(t, string(stored.LastNameEncrypted), "Doe")
	assert.NotContains(t, string(stored.PhoneEncrypted), "555-0100")

	got, err := f.service.Get(context.Background(), f.staff, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.FirstName)
	assert.Equal(t, "Doe", got.LastName)
	assert.Equal(t, "555-0100", got.Phone)
}

func TestCreateRequiresEditGrantInEveryProgram(t *testing.T) {
	f := newFixture(t)
	other := &model.Program{Base: model.Base{ID: uuid.New()}, Name: "Counselling", Status: model.ProgramStatusActive}
	f.store.Programs[other.ID] = other

	_, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{
		FirstName: "Jane", LastName: "Doe",
	}, []uuid.UUID{f.program.ID, other.ID})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	// A receptionist grant in the other program is not enough either:
	// receptionists cannot edit clients.
	f.store.Grants = append(f.store.Grants, &model.UserProgramRole{
		Base: model.Base{ID: uuid.New()}, UserID: f.staff.ID, ProgramID: other.ID,
		Role: model.RoleReceptionist, Status: model.GrantActive,
	})
	_, err = f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{
		FirstName: "Jane", LastName: "Doe",
	}, []uuid.UUID{f.program.ID, other.ID})
	require.Error(t, err)
}

func TestClientInheritsActorUniverse(t *testing.T) {
	f := newFixture(t)
	demo := &model.User{Base: model.Base{ID: uuid.New()}, Username: "demo1", IsDemo: true, IsActive: true}
	f.store.Users[demo.ID] = demo
	f.store.Grants = append(f.store.Grants, &model.UserProgramRole{
		Base: model.Base{ID: uuid.New()}, UserID: demo.ID, ProgramID: f.program.ID,
		Role: model.RoleStaff, Status: model.GrantActive,
	})

	real, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{FirstName: "R", LastName: "L"}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)
	sandbox, err := f.service.Create(context.Background(), demo, &model.CreateClientRequest{FirstName: "D", LastName: "L"}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)
	assert.False(t, real.IsDemo)
	assert.True(t, sandbox.IsDemo)

	// Listings are disjoint and together cover both files.
	realList, err := f.service.List(context.Background(), f.staff)
	require.NoError(t, err)
	demoList, err := f.service.List(context.Background(), demo)
	require.NoError(t, err)
	require.Len(t, realList, 1)
	require.Len(t, demoList, 1)
	assert.Equal(t, real.ID, realList[0].ID)
	assert.Equal(t, sandbox.ID, demoList[0].ID)

	// Cross-universe reads are denied outright.
	_, err = f.service.Get(context.Background(), f.staff, sandbox.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestListSkipsBlockedClients(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{FirstName: "Jane", LastName: "Doe"}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)

	admin := &model.User{Base: model.Base{ID: uuid.New()}, IsAdmin: true, IsActive: true}
	f.store.Users[admin.ID] = admin
	require.NoError(t, f.service.Block(context.Background(), admin, f.staff.ID, created.ID, "conflict of interest"))

	list, err := f.service.List(context.Background(), f.staff)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.service.Get(context.Background(), f.staff, created.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestBlockRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	err := f.service.Block(context.Background(), f.staff, f.staff.ID, uuid.New(), "x")
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestUpdateReEncrypts(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{FirstName: "Jane", LastName: "Doe"}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)

	newName := "Janet"
	updated, err := f.service.Update(context.Background(), f.staff, created.ID, &model.UpdateClientRequest{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "Doe", updated.LastName)
	assert.NotContains(t, string(f.store.Clients[created.ID].FirstNameEncrypted), "Janet")
}

func TestUnreadableFieldCountsDecryptionFailure(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.Create(context.Background(), f.staff, &model.CreateClientRequest{
		FirstName: "Jane", LastName: "Doe",
	}, []uuid.UUID{f.program.ID})
	require.NoError(t, err)

	m := metrics.NewMetrics("clienttest", "svc")
	f.service.metrics = m

	// Corrupt the stored ciphertext so no key can open it.
	f.store.Clients[created.ID].FirstNameEncrypted = []byte("not a ciphertext")

	got, err := f.service.Get(context.Background(), f.staff, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "[unreadable]", got.FirstName)
	assert.Equal(t, "Doe", got.LastName)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecryptionFailures))
}
