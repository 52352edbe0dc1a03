package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePending maps the storage-layer uniqueness guarantee
	// (one pending recommendation per alert) back to the caller.
	ErrDuplicatePending = errors.New("a pending recommendation already exists for this alert")
)

// TxHook runs inside the mutation's transaction, before commit. A hook
// failure rolls the mutation back; services use it to make audit writes
// fail-closed.
type TxHook func(ctx context.Context) error

type UserRepository interface {
	Create(ctx context.Context, user *model.User, hook TxHook) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateInvite(ctx context.Context, invite *model.Invite, hook TxHook) error
	GetInviteByCode(ctx context.Context, code uuid.UUID) (*model.Invite, error)
	// ConsumeInvite provisions the user, marks the invite used, and
	// creates the invite's role grants in one transaction.
	ConsumeInvite(ctx context.Context, invite *model.Invite, user *model.User, hook TxHook) error
}

type ProgramRepository interface {
	Create(ctx context.Context, program *model.Program, hook TxHook) error
	Get(ctx context.Context, id uuid.UUID) (*model.Program, error)
	// Update never clears is_confidential; the flag is one-way at the
	// SQL level.
	Update(ctx context.Context, program *model.Program, hook TxHook) error
	List(ctx context.Context) ([]*model.Program, error)

	GrantRole(ctx context.Context, grant *model.UserProgramRole, hook TxHook) error
	// RevokeRole soft-deletes (status=removed); history is preserved.
	RevokeRole(ctx context.Context, userID, programID uuid.UUID, hook TxHook) error
	ActiveGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserProgramRole, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *model.ClientFile, programIDs []uuid.UUID, hook TxHook) error
	Get(ctx context.Context, id uuid.UUID) (*model.ClientFile, error)
	Update(ctx context.Context, client *model.ClientFile, hook TxHook) error
	// ListByUniverse returns only one universe; demo and real sets are
	// disjoint and together exhaustive.
	ListByUniverse(ctx context.Context, isDemo bool) ([]*model.ClientFile, error)

	EnrolledProgramIDs(ctx context.Context, clientFileID uuid.UUID) ([]uuid.UUID, error)
	Discharge(ctx context.Context, clientFileID, programID uuid.UUID) error

	HasActiveBlock(ctx context.Context, userID, clientFileID uuid.UUID) (bool, error)
	CreateBlock(ctx context.Context, block *model.AccessBlock) error
}

type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *model.Alert, hook TxHook) error
	GetAlert(ctx context.Context, id uuid.UUID) (*model.Alert, error)
	ListAlertsForClient(ctx context.Context, clientFileID uuid.UUID) ([]*model.Alert, error)
	// CancelAlert flips the alert to cancelled with a reason.
	CancelAlert(ctx context.Context, alertID uuid.UUID, reason string, hook TxHook) error

	CreateRecommendation(ctx context.Context, rec *model.CancellationRecommendation, hook TxHook) error
	GetRecommendation(ctx context.Context, id uuid.UUID) (*model.CancellationRecommendation, error)
	PendingRecommendation(ctx context.Context, alertID uuid.UUID) (*model.CancellationRecommendation, error)
	// ResolveRecommendation updates the recommendation and, when
	// cancelAlert is set, cancels its alert in the same transaction.
	ResolveRecommendation(ctx context.Context, rec *model.CancellationRecommendation, cancelAlert bool, hook TxHook) error
}

// AuditRepository writes to the dedicated audit database.
type AuditRepository interface {
	Create(ctx context.Context, record *model.AuditRecord) error
	List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditRecord, error)
	ListUnpublished(ctx context.Context, limit int) ([]*model.AuditRecord, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
