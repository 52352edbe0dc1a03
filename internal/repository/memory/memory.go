// Package memory provides in-memory repository implementations for
// tests. They honour the same invariants the postgres layer enforces
// with constraints: one pending recommendation per alert, one-way
// confidential flag, soft role revocation. Single-row reads return
// copies, like a row scan, so mutations only land through a write
// method.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
)

type Store struct {
	mu sync.Mutex

	Users           map[uuid.UUID]*model.User
	Invites         map[uuid.UUID]*model.Invite
	Programs        map[uuid.UUID]*model.Program
	Grants          []*model.UserProgramRole
	Clients         map[uuid.UUID]*model.ClientFile
	Enrolments      []*model.Enrolment
	Blocks          []*model.AccessBlock
	Alerts          map[uuid.UUID]*model.Alert
	Recommendations map[uuid.UUID]*model.CancellationRecommendation
	AuditRecords    []*model.AuditRecord

	// FailAudit makes every audit write fail, for fail-closed tests.
	FailAudit bool
}

func NewStore() *Store {
	return &Store{
		Users:           make(map[uuid.UUID]*model.User),
		Invites:         make(map[uuid.UUID]*model.Invite),
		Programs:        make(map[uuid.UUID]*model.Program),
		Clients:         make(map[uuid.UUID]*model.ClientFile),
		Alerts:          make(map[uuid.UUID]*model.Alert),
		Recommendations: make(map[uuid.UUID]*model.CancellationRecommendation),
	}
}

func runHook(ctx context.Context, hook repository.TxHook) error {
	if hook == nil {
		return nil
	}
	return hook(ctx)
}

// --- UserRepository ---

type UserRepo struct{ S *Store }

func (r *UserRepo) Create(ctx context.Context, user *model.User, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Users[user.ID] = user
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	user, ok := r.S.Users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, user := range r.S.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if user, ok := r.S.Users[id]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

func (r *UserRepo) CreateInvite(ctx context.Context, invite *model.Invite, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Invites[invite.Code] = invite
	return nil
}

func (r *UserRepo) GetInviteByCode(ctx context.Context, code uuid.UUID) (*model.Invite, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	invite, ok := r.S.Invites[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *invite
	return &copied, nil
}

func (r *UserRepo) ConsumeInvite(ctx context.Context, invite *model.Invite, user *model.User, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Users[user.ID] = user
	now := time.Now()
	if stored, ok := r.S.Invites[invite.Code]; ok {
		stored.UsedBy = &user.ID
		stored.UsedAt = &now
	}
	for _, programID := range invite.Programs {
		r.S.Grants = append(r.S.Grants, &model.UserProgramRole{
			Base:      model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			UserID:    user.ID,
			ProgramID: programID,
			Role:      invite.Role,
			Status:    model.GrantActive,
		})
	}
	return nil
}

// --- ProgramRepository ---

type ProgramRepo struct{ S *Store }

func (r *ProgramRepo) Create(ctx context.Context, program *model.Program, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Programs[program.ID] = program
	return nil
}

func (r *ProgramRepo) Get(ctx context.Context, id uuid.UUID) (*model.Program, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	program, ok := r.S.Programs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *program
	return &copied, nil
}

func (r *ProgramRepo) Update(ctx context.Context, program *model.Program, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	existing, ok := r.S.Programs[program.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// One-way flag, as the SQL layer enforces it.
	program.IsConfidential = program.IsConfidential || existing.IsConfidential
	r.S.Programs[program.ID] = program
	return nil
}

func (r *ProgramRepo) List(ctx context.Context) ([]*model.Program, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := make([]*model.Program, 0, len(r.S.Programs))
	for _, program := range r.S.Programs {
		out = append(out, program)
	}
	return out, nil
}

func (r *ProgramRepo) GrantRole(ctx context.Context, grant *model.UserProgramRole, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Grants = append(r.S.Grants, grant)
	return nil
}

func (r *ProgramRepo) RevokeRole(ctx context.Context, userID, programID uuid.UUID, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, grant := range r.S.Grants {
		if grant.UserID == userID && grant.ProgramID == programID && grant.Status == model.GrantActive {
			grant.Status = model.GrantRemoved
		}
	}
	return nil
}

func (r *ProgramRepo) ActiveGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserProgramRole, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*model.UserProgramRole
	for _, grant := range r.S.Grants {
		if grant.UserID == userID && grant.Status == model.GrantActive {
			out = append(out, grant)
		}
	}
	return out, nil
}

// --- ClientRepository ---

type ClientRepo struct{ S *Store }

func (r *ClientRepo) Create(ctx context.Context, client *model.ClientFile, programIDs []uuid.UUID, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Clients[client.ID] = client
	now := time.Now()
	for _, programID := range programIDs {
		r.S.Enrolments = append(r.S.Enrolments, &model.Enrolment{
			Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			ClientFileID: client.ID,
			ProgramID:    programID,
			Status:       model.Enrolled,
		})
	}
	return nil
}

func (r *ClientRepo) Get(ctx context.Context, id uuid.UUID) (*model.ClientFile, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	client, ok := r.S.Clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *ClientRepo) Update(ctx context.Context, client *model.ClientFile, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Clients[client.ID]; !ok {
		return repository.ErrNotFound
	}
	r.S.Clients[client.ID] = client
	return nil
}

func (r *ClientRepo) ListByUniverse(ctx context.Context, isDemo bool) ([]*model.ClientFile, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*model.ClientFile
	for _, client := range r.S.Clients {
		if client.IsDemo == isDemo {
			out = append(out, client)
		}
	}
	return out, nil
}

func (r *ClientRepo) EnrolledProgramIDs(ctx context.Context, clientFileID uuid.UUID) ([]uuid.UUID, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []uuid.UUID
	for _, enrolment := range r.S.Enrolments {
		if enrolment.ClientFileID == clientFileID && enrolment.Status == model.Enrolled {
			out = append(out, enrolment.ProgramID)
		}
	}
	return out, nil
}

func (r *ClientRepo) Discharge(ctx context.Context, clientFileID, programID uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, enrolment := range r.S.Enrolments {
		if enrolment.ClientFileID == clientFileID && enrolment.ProgramID == programID {
			enrolment.Status = model.Discharged
		}
	}
	return nil
}

func (r *ClientRepo) HasActiveBlock(ctx context.Context, userID, clientFileID uuid.UUID) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, block := range r.S.Blocks {
		if block.UserID == userID && block.ClientFileID == clientFileID && block.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *ClientRepo) CreateBlock(ctx context.Context, block *model.AccessBlock) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Blocks = append(r.S.Blocks, block)
	return nil
}

// --- AlertRepository ---

type AlertRepo struct{ S *Store }

func (r *AlertRepo) CreateAlert(ctx context.Context, alert *model.Alert, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Alerts[alert.ID] = alert
	return nil
}

func (r *AlertRepo) GetAlert(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	alert, ok := r.S.Alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *AlertRepo) ListAlertsForClient(ctx context.Context, clientFileID uuid.UUID) ([]*model.Alert, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*model.Alert
	for _, alert := range r.S.Alerts {
		if alert.ClientFileID == clientFileID {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (r *AlertRepo) CancelAlert(ctx context.Context, alertID uuid.UUID, reason string, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	alert, ok := r.S.Alerts[alertID]
	if !ok {
		return repository.ErrNotFound
	}
	alert.Status = model.AlertCancelled
	alert.StatusReason = reason
	return nil
}

func (r *AlertRepo) CreateRecommendation(ctx context.Context, rec *model.CancellationRecommendation, hook repository.TxHook) error {
	r.S.mu.Lock()
	for _, existing := range r.S.Recommendations {
		if existing.AlertID == rec.AlertID && existing.Status == model.RecommendationPending {
			r.S.mu.Unlock()
			return repository.ErrDuplicatePending
		}
	}
	r.S.mu.Unlock()
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Recommendations[rec.ID] = rec
	return nil
}

func (r *AlertRepo) GetRecommendation(ctx context.Context, id uuid.UUID) (*model.CancellationRecommendation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	rec, ok := r.S.Recommendations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *AlertRepo) PendingRecommendation(ctx context.Context, alertID uuid.UUID) (*model.CancellationRecommendation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, rec := range r.S.Recommendations {
		if rec.AlertID == alertID && rec.Status == model.RecommendationPending {
			return rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AlertRepo) ResolveRecommendation(ctx context.Context, rec *model.CancellationRecommendation, cancelAlert bool, hook repository.TxHook) error {
	if err := runHook(ctx, hook); err != nil {
		return err
	}
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Recommendations[rec.ID] = rec
	if cancelAlert {
		if alert, ok := r.S.Alerts[rec.AlertID]; ok {
			alert.Status = model.AlertCancelled
		}
	}
	return nil
}

// --- AuditRepository ---

type AuditRepo struct{ S *Store }

func (r *AuditRepo) Create(ctx context.Context, record *model.AuditRecord) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.FailAudit {
		return context.DeadlineExceeded
	}
	r.S.AuditRecords = append(r.S.AuditRecords, record)
	return nil
}

func (r *AuditRepo) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditRecord, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	return append([]*model.AuditRecord{}, r.S.AuditRecords...), nil
}

func (r *AuditRepo) ListUnpublished(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*model.AuditRecord
	for _, record := range r.S.AuditRecords {
		if record.PublishedAt == nil {
			out = append(out, record)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *AuditRepo) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	idSet := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	for _, record := range r.S.AuditRecords {
		if _, ok := idSet[record.ID]; ok {
			published := at
			record.PublishedAt = &published
		}
	}
	return nil
}

func (r *AuditRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var kept []*model.AuditRecord
	var deleted int64
	for _, record := range r.S.AuditRecords {
		if record.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	r.S.AuditRecords = kept
	return deleted, nil
}
