package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/memory"
)

type fixture struct {
	store    *memory.Store
	resolver *Resolver
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store:    store,
		resolver: NewResolver(&memory.ProgramRepo{S: store}, &memory.ClientRepo{S: store}),
	}
}

func (f *fixture) addUser(isDemo, isAdmin bool) *model.User {
	user := &model.User{
		Base:     model.Base{ID: uuid.New()},
		IsDemo:   isDemo,
		IsAdmin:  isAdmin,
		IsActive: true,
	}
	f.store.Users[user.ID] = user
	return user
}

func (f *fixture) addProgram(name string) *model.Program {
	program := &model.Program{
		Base:   model.Base{ID: uuid.New()},
		Name:   name,
		Status: model.ProgramStatusActive,
	}
	f.store.Programs[program.ID] = program
	return program
}

func (f *fixture) addClient(isDemo bool, programs ...*model.Program) *model.ClientFile {
	client := &model.ClientFile{
		Base:   model.Base{ID: uuid.New()},
		IsDemo: isDemo,
		Status: model.ClientStatusActive,
	}
	f.store.Clients[client.ID] = client
	for _, program := range programs {
		f.store.Enrolments = append(f.store.Enrolments, &model.Enrolment{
			Base:         model.Base{ID: uuid.New()},
			ClientFileID: client.ID,
			ProgramID:    program.ID,
			Status:       model.Enrolled,
		})
	}
	return client
}

func (f *fixture) grant(user *model.User, program *model.Program, role model.Role) *model.UserProgramRole {
	grant := &model.UserProgramRole{
		Base:      model.Base{ID: uuid.New()},
		UserID:    user.ID,
		ProgramID: program.ID,
		Role:      role,
		Status:    model.GrantActive,
	}
	f.store.Grants = append(f.store.Grants, grant)
	return grant
}

func TestProgramIsolation(t *testing.T) {
	// Holding staff in program A leaks no authority into program B:
	// only the receptionist grant is shared with the client, and
	// receptionists cannot create notes.
	f := newFixture()
	programA := f.addProgram("Housing")
	programB := f.addProgram("Counselling")
	user := f.addUser(false, false)
	f.grant(user, programA, model.RoleStaff)
	f.grant(user, programB, model.RoleReceptionist)
	client := f.addClient(false, programB)

	_, err := f.resolver.Resolve(context.Background(), user, client.ID, model.PermNoteCreate)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// The same user acting on a client in program A is allowed.
	clientA := f.addClient(false, programA)
	res, err := f.resolver.Resolve(context.Background(), user, clientA.ID, model.PermNoteCreate)
	require.NoError(t, err)
	assert.Equal(t, programA.ID, res.ProgramID)
	assert.Equal(t, model.RoleStaff, res.Role)
}

func TestDemoRealDisjoint(t *testing.T) {
	f := newFixture()
	program := f.addProgram("Housing")

	realUser := f.addUser(false, false)
	demoUser := f.addUser(true, false)
	f.grant(realUser, program, model.RoleStaff)
	f.grant(demoUser, program, model.RoleStaff)

	realClient := f.addClient(false, program)
	demoClient := f.addClient(true, program)

	_, err := f.resolver.Resolve(context.Background(), realUser, demoClient.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.resolver.Resolve(context.Background(), demoUser, realClient.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.resolver.Resolve(context.Background(), realUser, realClient.ID, model.PermClientView)
	assert.NoError(t, err)
	_, err = f.resolver.Resolve(context.Background(), demoUser, demoClient.ID, model.PermClientView)
	assert.NoError(t, err)
}

func TestAccessBlockOverridesEverything(t *testing.T) {
	f := newFixture()
	program := f.addProgram("Housing")
	user := f.addUser(false, true) // admin AND program manager
	f.grant(user, program, model.RoleProgramManager)
	client := f.addClient(false, program)

	f.store.Blocks = append(f.store.Blocks, &model.AccessBlock{
		Base:         model.Base{ID: uuid.New()},
		UserID:       user.ID,
		ClientFileID: client.ID,
		IsActive:     true,
	})

	_, err := f.resolver.Resolve(context.Background(), user, client.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// An inactive block does not count.
	f.store.Blocks[0].IsActive = false
	_, err = f.resolver.Resolve(context.Background(), user, client.ID, model.PermClientView)
	assert.NoError(t, err)
}

func TestAdminFlagGrantsNoClientAccess(t *testing.T) {
	f := newFixture()
	program := f.addProgram("Housing")
	admin := f.addUser(false, true)
	client := f.addClient(false, program)

	_, err := f.resolver.Resolve(context.Background(), admin, client.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestRemovedGrantsAndDischargedEnrolmentsIgnored(t *testing.T) {
	f := newFixture()
	program := f.addProgram("Housing")
	user := f.addUser(false, false)
	grant := f.grant(user, program, model.RoleStaff)
	client := f.addClient(false, program)

	grant.Status = model.GrantRemoved
	_, err := f.resolver.Resolve(context.Background(), user, client.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)

	grant.Status = model.GrantActive
	f.store.Enrolments[0].Status = model.Discharged
	_, err = f.resolver.Resolve(context.Background(), user, client.ID, model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestBestProgramPrefersPermissionGrantingRole(t *testing.T) {
	// Executive outranks staff but denies note.create; the staff grant
	// must win. Rank alone would silently deny an entitled action.
	f := newFixture()
	programA := f.addProgram("Housing")
	programB := f.addProgram("Counselling")
	user := f.addUser(false, false)
	f.grant(user, programA, model.RoleExecutive)
	f.grant(user, programB, model.RoleStaff)
	client := f.addClient(false, programA, programB)

	res, err := f.resolver.Resolve(context.Background(), user, client.ID, model.PermNoteCreate)
	require.NoError(t, err)
	assert.Equal(t, programB.ID, res.ProgramID)
	assert.Equal(t, model.RoleStaff, res.Role)

	// Same shape for the two-person workflow: a PM grant denies
	// recommend_cancel, the lower-ranked staff grant allows it.
	f.grant(user, programA, model.RoleProgramManager)
	res, err = f.resolver.Resolve(context.Background(), user, client.ID, model.PermAlertRecommendCancel)
	require.NoError(t, err)
	assert.Equal(t, programB.ID, res.ProgramID)
	assert.Equal(t, model.RoleStaff, res.Role)
}

func TestBestProgramTieBreakIsDeterministic(t *testing.T) {
	f := newFixture()
	programA := f.addProgram("A")
	programB := f.addProgram("B")
	user := f.addUser(false, false)
	f.grant(user, programA, model.RoleStaff)
	f.grant(user, programB, model.RoleStaff)
	client := f.addClient(false, programA, programB)

	want := programA.ID
	if programB.ID.String() < programA.ID.String() {
		want = programB.ID
	}
	for i := 0; i < 10; i++ {
		res, err := f.resolver.Resolve(context.Background(), user, client.ID, model.PermNoteCreate)
		require.NoError(t, err)
		assert.Equal(t, want, res.ProgramID)
	}
}

func TestResolveGlobal(t *testing.T) {
	f := newFixture()
	program := f.addProgram("Housing")
	exec := f.addUser(false, false)
	f.grant(exec, program, model.RoleExecutive)

	res, err := f.resolver.ResolveGlobal(context.Background(), exec, model.PermReportView)
	require.NoError(t, err)
	assert.Equal(t, model.Allow, res.Decision)

	staff := f.addUser(false, false)
	f.grant(staff, program, model.RoleStaff)
	_, err = f.resolver.ResolveGlobal(context.Background(), staff, model.PermReportView)
	assert.ErrorIs(t, err, ErrAccessDenied)

	nobody := f.addUser(false, false)
	_, err = f.resolver.ResolveGlobal(context.Background(), nobody, model.PermReportView)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestMissingClientIsIndistinguishableFromDenial(t *testing.T) {
	f := newFixture()
	user := f.addUser(false, false)
	_, err := f.resolver.Resolve(context.Background(), user, uuid.New(), model.PermClientView)
	assert.ErrorIs(t, err, ErrAccessDenied)
}
