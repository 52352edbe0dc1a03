// Package client manages client files. Identifying fields are stored
// encrypted; plaintext exists only inside a request, for callers the
// resolver has already cleared.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/internal/service/access"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	"github.com/gilliankerr/KoNote-sub000/internal/service/rbac"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

type Service struct {
	repo      repository.ClientRepository
	programs  repository.ProgramRepository
	resolver  *access.Resolver
	auditor   *audit.Service
	encryptor security.FieldEncryptor
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	repo repository.ClientRepository,
	programs repository.ProgramRepository,
	resolver *access.Resolver,
	auditor *audit.Service,
	encryptor security.FieldEncryptor,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		programs:  programs,
		resolver:  resolver,
		auditor:   auditor,
		encryptor: encryptor,
		logger:    log,
		metrics:   m,
	}
}

// Create opens a client file enrolled in the given programs. The actor
// needs an active client.edit-granting role in every target program,
// and the file inherits the actor's universe: demo users create demo
// clients, real users real ones, with no way to cross over.
func (s *Service) Create(ctx context.Context, actor *model.User, req *model.CreateClientRequest, programIDs []uuid.UUID) (*model.Client, error) {
	if len(programIDs) == 0 {
		return nil, apperrors.Validation("at least one program is required", nil)
	}

	grants, err := s.programs.ActiveGrantsForUser(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	granting := make(map[uuid.UUID]bool)
	for _, grant := range grants {
		if rbac.Decide(grant.Role, model.PermClientEdit) != model.Deny {
			granting[grant.ProgramID] = true
		}
	}
	for _, programID := range programIDs {
		if !granting[programID] {
			return nil, apperrors.Forbidden(access.ErrAccessDenied)
		}
	}

	file := &model.ClientFile{
		Base:   model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		IsDemo: actor.IsDemo,
		Status: model.ClientStatusActive,
	}
	file.RecordID = recordID(file.ID)
	if file.FirstNameEncrypted, err = s.encryptor.Encrypt(req.FirstName); err != nil {
		return nil, apperrors.Internal(err)
	}
	if file.LastNameEncrypted, err = s.encryptor.Encrypt(req.LastName); err != nil {
		return nil, apperrors.Internal(err)
	}
	if file.PhoneEncrypted, err = s.encryptor.Encrypt(req.Phone); err != nil {
		return nil, apperrors.Internal(err)
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionCreate,
		ResourceType: model.AuditResourceClient,
		ResourceID:   file.ID,
		Metadata: map[string]interface{}{
			"programs": programIDs,
			"is_demo":  file.IsDemo,
		},
	})
	if err := s.repo.Create(ctx, file, programIDs, hook); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.decrypt(file)
}

// Get returns the decrypted view for an authorized actor.
func (s *Service) Get(ctx context.Context, actor *model.User, clientFileID uuid.UUID) (*model.Client, error) {
	if _, err := s.resolver.Resolve(ctx, actor, clientFileID, model.PermClientView); err != nil {
		return nil, s.deny(err)
	}
	file, err := s.repo.Get(ctx, clientFileID)
	if err != nil {
		return nil, apperrors.Forbidden(err)
	}
	return s.decrypt(file)
}

// Update rewrites identifying fields; only provided fields change.
func (s *Service) Update(ctx context.Context, actor *model.User, clientFileID uuid.UUID, req *model.UpdateClientRequest) (*model.Client, error) {
	if _, err := s.resolver.Resolve(ctx, actor, clientFileID, model.PermClientEdit); err != nil {
		return nil, s.deny(err)
	}
	file, err := s.repo.Get(ctx, clientFileID)
	if err != nil {
		return nil, apperrors.Forbidden(err)
	}

	if req.FirstName != nil {
		if file.FirstNameEncrypted, err = s.encryptor.Encrypt(*req.FirstName); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	if req.LastName != nil {
		if file.LastNameEncrypted, err = s.encryptor.Encrypt(*req.LastName); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	if req.Phone != nil {
		if file.PhoneEncrypted, err = s.encryptor.Encrypt(*req.Phone); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	file.UpdatedAt = time.Now()

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionUpdate,
		ResourceType: model.AuditResourceClient,
		ResourceID:   file.ID,
	})
	if err := s.repo.Update(ctx, file, hook); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.decrypt(file)
}

// List returns the actor's reachable clients: same universe, sharing at
// least one program with an active grant, no active block. Demo and
// real listings are disjoint by construction.
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Client, error) {
	grants, err := s.programs.ActiveGrantsForUser(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	granted := make(map[uuid.UUID]bool, len(grants))
	for _, grant := range grants {
		granted[grant.ProgramID] = true
	}
	if len(granted) == 0 {
		return []*model.Client{}, nil
	}

	files, err := s.repo.ListByUniverse(ctx, actor.IsDemo)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	clients := make([]*model.Client, 0, len(files))
	for _, file := range files {
		blocked, err := s.repo.HasActiveBlock(ctx, actor.ID, file.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if blocked {
			continue
		}
		enrolled, err := s.repo.EnrolledProgramIDs(ctx, file.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		shared := false
		for _, programID := range enrolled {
			if granted[programID] {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		client, err := s.decrypt(file)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// Block adds a negative-access override for (user, client). Only
// admins manage the block list; it is a safety control, not client
// data, so the admin flag is the right gate.
func (s *Service) Block(ctx context.Context, actor *model.User, userID, clientFileID uuid.UUID, reason string) error {
	if !actor.IsAdmin {
		return apperrors.Forbidden(access.ErrAccessDenied)
	}
	block := &model.AccessBlock{
		Base:         model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		UserID:       userID,
		ClientFileID: clientFileID,
		IsActive:     true,
		Reason:       reason,
	}
	if err := s.repo.CreateBlock(ctx, block); err != nil {
		return fmt.Errorf("create access block: %w", err)
	}
	return nil
}

func (s *Service) decrypt(file *model.ClientFile) (*model.Client, error) {
	client := &model.Client{
		ID:       file.ID,
		RecordID: file.RecordID,
		IsDemo:   file.IsDemo,
		Status:   file.Status,
	}
	var err error
	if client.FirstName, err = s.decryptField(file.ID, file.FirstNameEncrypted); err != nil {
		return nil, err
	}
	if client.LastName, err = s.decryptField(file.ID, file.LastNameEncrypted); err != nil {
		return nil, err
	}
	if client.Phone, err = s.decryptField(file.ID, file.PhoneEncrypted); err != nil {
		return nil, err
	}
	return client, nil
}

// decryptField logs an unreadable value without any payload and
// substitutes a placeholder so it cannot be mistaken for an empty
// field.
func (s *Service) decryptField(fileID uuid.UUID, ciphertext []byte) (string, error) {
	plaintext, err := s.encryptor.Decrypt(ciphertext)
	if errors.Is(err, security.ErrDecryptionFailed) {
		s.logger.Error(err, "client field unreadable", "client_file_id", fileID)
		if s.metrics != nil {
			s.metrics.DecryptionFailures.Inc()
		}
		return "[unreadable]", nil
	}
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return plaintext, nil
}

func (s *Service) deny(err error) error {
	if errors.Is(err, access.ErrAccessDenied) {
		return apperrors.Forbidden(err)
	}
	return apperrors.Internal(err)
}

// recordID derives a short human-facing identifier from the row ID.
func recordID(id uuid.UUID) string {
	return "CF-" + id.String()[:8]
}
