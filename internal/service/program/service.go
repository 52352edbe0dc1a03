// Package program manages programs and program role grants. These are
// system configuration, so the admin flag is the gate here, alongside
// program managers for grants within their own program.
package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
)

var errNotAuthorized = errors.New("not authorized to manage programs")

type Service struct {
	repo    repository.ProgramRepository
	auditor *audit.Service
}

func NewService(repo repository.ProgramRepository, auditor *audit.Service) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateProgramRequest) (*model.Program, error) {
	if !actor.IsAdmin {
		return nil, apperrors.Forbidden(errNotAuthorized)
	}

	now := time.Now()
	program := &model.Program{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:           req.Name,
		Description:    req.Description,
		ColourHex:      req.ColourHex,
		IsConfidential: req.IsConfidential,
		Status:         model.ProgramStatusActive,
	}
	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionCreate,
		ResourceType: model.AuditResourceProgram,
		ResourceID:   program.ID,
		Metadata:     map[string]interface{}{"name": program.Name},
	})
	if err := s.repo.Create(ctx, program, hook); err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}
	return program, nil
}

// Update changes program attributes. The confidential flag only ever
// moves false→true; the repository ignores attempts to clear it, so
// even a buggy caller cannot revert it.
func (s *Service) Update(ctx context.Context, actor *model.User, programID uuid.UUID, req *model.UpdateProgramRequest) (*model.Program, error) {
	if !actor.IsAdmin {
		return nil, apperrors.Forbidden(errNotAuthorized)
	}

	program, err := s.repo.Get(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("program", err)
		}
		return nil, apperrors.Internal(err)
	}

	if req.Name != nil {
		program.Name = *req.Name
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.ColourHex != nil {
		program.ColourHex = *req.ColourHex
	}
	if req.IsConfidential != nil {
		program.IsConfidential = program.IsConfidential || *req.IsConfidential
	}
	program.UpdatedAt = time.Now()

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionUpdate,
		ResourceType: model.AuditResourceProgram,
		ResourceID:   program.ID,
	})
	if err := s.repo.Update(ctx, program, hook); err != nil {
		return nil, fmt.Errorf("update program: %w", err)
	}
	return program, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Program, error) {
	program, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("program", err)
		}
		return nil, apperrors.Internal(err)
	}
	return program, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Program, error) {
	return s.repo.List(ctx)
}

// GrantRole assigns role to user within program. Admins may grant
// anywhere; a program manager only within programs they manage.
func (s *Service) GrantRole(ctx context.Context, actor *model.User, userID, programID uuid.UUID, role model.Role) (*model.UserProgramRole, error) {
	if !role.Valid() {
		return nil, apperrors.Validation("unknown role", nil)
	}
	if err := s.canManageGrants(ctx, actor, programID); err != nil {
		return nil, err
	}

	now := time.Now()
	grant := &model.UserProgramRole{
		Base:      model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		UserID:    userID,
		ProgramID: programID,
		Role:      role,
		Status:    model.GrantActive,
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionGrantRole,
		ResourceType: model.AuditResourceRoleGrant,
		ResourceID:   grant.ID,
		Metadata: map[string]interface{}{
			"user_id":    userID,
			"program_id": programID,
			"role":       role,
		},
	})
	if err := s.repo.GrantRole(ctx, grant, hook); err != nil {
		return nil, fmt.Errorf("grant role: %w", err)
	}
	return grant, nil
}

// RevokeRole soft-deletes the grant; the row stays for audit history.
func (s *Service) RevokeRole(ctx context.Context, actor *model.User, userID, programID uuid.UUID) error {
	if err := s.canManageGrants(ctx, actor, programID); err != nil {
		return err
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionRevokeRole,
		ResourceType: model.AuditResourceRoleGrant,
		ResourceID:   userID,
		Metadata: map[string]interface{}{
			"user_id":    userID,
			"program_id": programID,
		},
	})
	if err := s.repo.RevokeRole(ctx, userID, programID, hook); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (s *Service) canManageGrants(ctx context.Context, actor *model.User, programID uuid.UUID) error {
	if actor.IsAdmin {
		return nil
	}
	grants, err := s.repo.ActiveGrantsForUser(ctx, actor.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	for _, grant := range grants {
		if grant.ProgramID == programID && grant.Role == model.RoleProgramManager {
			return nil
		}
	}
	return apperrors.Forbidden(errNotAuthorized)
}
