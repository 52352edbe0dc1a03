// Package user covers provisioning, login, invites, and demo
// impersonation. Authentication failures are uniform: callers learn
// that login failed, never which part of the credential was wrong.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/email"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	"github.com/gilliankerr/KoNote-sub000/pkg/auth"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

const inviteExpiry = 7 * 24 * time.Hour

var (
	errBadCredentials = errors.New("bad credentials")
	errNotAdmin       = errors.New("admin flag required")
)

type Service struct {
	repo      repository.UserRepository
	tokens    auth.TokenService
	hasher    security.PasswordHasher
	mailer    email.Service
	auditor   *audit.Service
	encryptor security.FieldEncryptor
	logger    *logger.Logger
}

func NewService(repo repository.UserRepository, tokens auth.TokenService, hasher security.PasswordHasher, mailer email.Service, auditor *audit.Service, encryptor security.FieldEncryptor, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    mailer,
		auditor:   auditor,
		encryptor: encryptor,
		logger:    log,
	}
}

// Login verifies credentials and issues a session token. Unknown
// username, wrong password, and deactivated account all return the same
// error.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (string, *model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		return "", nil, apperrors.Unauthorized(errBadCredentials)
	}
	if !user.IsActive {
		return "", nil, apperrors.Unauthorized(errBadCredentials)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return "", nil, apperrors.Unauthorized(errBadCredentials)
	}

	token, err := s.tokens.Issue(auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		IsDemo:   user.IsDemo,
	})
	if err != nil {
		return "", nil, apperrors.Internal(err)
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Error(err, "update last login", "user_id", user.ID)
	}
	return token, user, nil
}

// Provision creates a user directly, without an invite. Admin only;
// this is how demo accounts come to exist.
func (s *Service) Provision(ctx context.Context, actor *model.User, username, displayName, emailAddr, password string, isDemo bool) (*model.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.Forbidden(errNotAdmin)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("password too short", err)
		}
		return nil, apperrors.Internal(err)
	}
	encEmail, err := s.encryptor.Encrypt(emailAddr)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	user := &model.User{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:       username,
		DisplayName:    displayName,
		EmailEncrypted: encEmail,
		PasswordHash:   hash,
		IsDemo:         isDemo,
		IsActive:       true,
	}
	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionCreate,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		Metadata:     map[string]interface{}{"username": username, "is_demo": isDemo},
	})
	if err := s.repo.Create(ctx, user, hook); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CreateInvite mints a single-use invite and mails the code to the
// recipient. The code never appears in the API response.
func (s *Service) CreateInvite(ctx context.Context, actor *model.User, req *model.CreateInviteRequest) (*model.Invite, error) {
	if !actor.IsAdmin {
		return nil, apperrors.Forbidden(errNotAdmin)
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, apperrors.Validation("unknown role", nil)
	}
	programs := make([]uuid.UUID, 0, len(req.Programs))
	for _, raw := range req.Programs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.Validation("bad program id", err)
		}
		programs = append(programs, id)
	}

	encEmail, err := s.encryptor.Encrypt(req.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	invite := &model.Invite{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Code:           uuid.New(),
		Role:           role,
		CreatedBy:      actor.ID,
		ExpiresAt:      now.Add(inviteExpiry),
		Programs:       programs,
		EmailEncrypted: encEmail,
	}
	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionInvite,
		ResourceType: model.AuditResourceInvite,
		ResourceID:   invite.ID,
		Metadata:     map[string]interface{}{"role": role, "programs": len(programs)},
	})
	if err := s.repo.CreateInvite(ctx, invite, hook); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	if err := s.mailer.SendInvite(ctx, req.Email, invite.Code.String(), string(role)); err != nil {
		// The invite row exists either way; the admin can re-send.
		s.logger.Error(err, "invite mail failed", "invite_id", invite.ID)
	}
	return invite, nil
}

// AcceptInvite provisions a user from an invite code. The invite's role
// grants are created in the same transaction as the user, with the
// audit record inside it.
func (s *Service) AcceptInvite(ctx context.Context, req *model.AcceptInviteRequest) (*model.User, error) {
	code, err := uuid.Parse(req.Code)
	if err != nil {
		return nil, apperrors.Validation("bad invite code", err)
	}
	invite, err := s.repo.GetInviteByCode(ctx, code)
	if err != nil {
		return nil, apperrors.NotFound("invite", err)
	}
	if invite.IsUsed() || invite.IsExpired(time.Now()) {
		return nil, apperrors.BadRequest("invite no longer valid", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("password too short", err)
		}
		return nil, apperrors.Internal(err)
	}
	// Re-encrypt the invite's address so the user row always carries
	// ciphertext under the newest key.
	inviteEmail, err := s.encryptor.Decrypt(invite.EmailEncrypted)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	encEmail, err := s.encryptor.Encrypt(inviteEmail)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	user := &model.User{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		EmailEncrypted: encEmail,
		PasswordHash:   hash,
		IsAdmin:        invite.IsAdmin,
		IsActive:       true,
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        user,
		Action:       model.AuditActionCreate,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		Metadata:     map[string]interface{}{"invite_id": invite.ID, "role": invite.Role},
	})
	if err := s.repo.ConsumeInvite(ctx, invite, user, hook); err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}
	return user, nil
}

// Impersonate issues a session token that acts as the target. Only
// admins may impersonate, and only active demo accounts may be
// targets; real identities are never assumable.
func (s *Service) Impersonate(ctx context.Context, actor *model.User, targetID uuid.UUID) (string, error) {
	if !actor.IsAdmin {
		return "", apperrors.Forbidden(errNotAdmin)
	}
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return "", apperrors.Forbidden(err)
	}
	if !target.IsDemo || !target.IsActive {
		return "", apperrors.Forbidden(errors.New("target is not an active demo account"))
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionImpersonate,
		ResourceType: model.AuditResourceUser,
		ResourceID:   target.ID,
		Metadata: map[string]interface{}{
			"target_username": target.Username,
		},
	}); err != nil {
		// No audit record, no impersonation token.
		return "", err
	}

	token, err := s.tokens.Issue(auth.Claims{
		UserID:         target.ID,
		Username:       target.Username,
		IsAdmin:        target.IsAdmin,
		IsDemo:         true,
		ImpersonatorID: actor.ID,
	})
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return token, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
