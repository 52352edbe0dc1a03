// Package alert implements safety alerts and the two-person rule for
// cancelling them: staff propose, a program manager disposes. No staff
// action path can reach "cancelled" on its own.
package alert

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
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

// ErrAlreadyReviewed marks a recommendation that was resolved before
// this review arrived. Handlers redirect rather than error.
var ErrAlreadyReviewed = errors.New("recommendation already reviewed")

// ErrDuplicatePending re-exports the storage-level guard for callers.
var ErrDuplicatePending = repository.ErrDuplicatePending

type Service struct {
	repo      repository.AlertRepository
	resolver  *access.Resolver
	auditor   *audit.Service
	encryptor security.FieldEncryptor
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	repo repository.AlertRepository,
	resolver *access.Resolver,
	auditor *audit.Service,
	encryptor security.FieldEncryptor,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		auditor:   auditor,
		encryptor: encryptor,
		logger:    log,
		metrics:   m,
	}
}

// AlertView is an alert with its content decrypted for an authorized
// reader.
type AlertView struct {
	Alert   *model.Alert `json:"alert"`
	Content string       `json:"content"`
}

// RecommendationView carries a decrypted assessment for review.
type RecommendationView struct {
	Recommendation *model.CancellationRecommendation `json:"recommendation"`
	Assessment     string                            `json:"assessment"`
}

// Create attaches a new active alert to a client. Authorship is tagged
// with the best shared program for the alert.create permission and
// never changes afterwards.
func (s *Service) Create(ctx context.Context, actor *model.User, clientFileID uuid.UUID, content string) (*model.Alert, error) {
	res, err := s.resolver.Resolve(ctx, actor, clientFileID, model.PermAlertCreate)
	if err != nil {
		return nil, s.deny(err)
	}
	if content == "" {
		return nil, apperrors.Validation("alert content is required", nil)
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	alert := &model.Alert{
		Base:             model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ClientFileID:     clientFileID,
		ContentEncrypted: encrypted,
		Status:           model.AlertActive,
		AuthorID:         actor.ID,
		AuthorProgramID:  res.ProgramID,
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionCreate,
		ResourceType: model.AuditResourceAlert,
		ResourceID:   alert.ID,
		Metadata: map[string]interface{}{
			"client_file_id": clientFileID,
			"program_id":     res.ProgramID,
		},
	})
	if err := s.repo.CreateAlert(ctx, alert, hook); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	return alert, nil
}

// ListForClient returns the client's alerts with decrypted content.
// A content blob no key can open is surfaced as a redacted placeholder,
// never as an empty field.
func (s *Service) ListForClient(ctx context.Context, actor *model.User, clientFileID uuid.UUID) ([]AlertView, error) {
	if _, err := s.resolver.Resolve(ctx, actor, clientFileID, model.PermClientView); err != nil {
		return nil, s.deny(err)
	}

	alerts, err := s.repo.ListAlertsForClient(ctx, clientFileID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		content, err := s.encryptor.Decrypt(a.ContentEncrypted)
		if err != nil {
			s.logger.Error(err, "alert content unreadable", "alert_id", a.ID)
			if s.metrics != nil {
				s.metrics.DecryptionFailures.Inc()
			}
			content = "[unreadable]"
		}
		views = append(views, AlertView{Alert: a, Content: content})
	}
	return views, nil
}

// RecommendCancellation is the staff half of the two-person rule. At
// most one pending recommendation may exist per alert; a duplicate is
// reported as ErrDuplicatePending, which callers treat as a redirect.
func (s *Service) RecommendCancellation(ctx context.Context, actor *model.User, alertID uuid.UUID, assessment string) (*model.CancellationRecommendation, error) {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, s.notFoundAsDenied(err)
	}

	if _, err := s.resolver.Resolve(ctx, actor, alert.ClientFileID, model.PermAlertRecommendCancel); err != nil {
		return nil, s.deny(err)
	}

	if assessment == "" {
		return nil, apperrors.Validation("an assessment is required", nil)
	}
	if alert.Status != model.AlertActive {
		return nil, apperrors.Validation("alert is not active", nil)
	}

	encrypted, err := s.encryptor.Encrypt(assessment)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	rec := &model.CancellationRecommendation{
		Base:                model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		AlertID:             alertID,
		RecommendedBy:       actor.ID,
		AssessmentEncrypted: encrypted,
		Status:              model.RecommendationPending,
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionRecommendCancel,
		ResourceType: model.AuditResourceRecommendation,
		ResourceID:   rec.ID,
		Metadata: map[string]interface{}{
			"alert_id": alertID,
		},
	})
	if err := s.repo.CreateRecommendation(ctx, rec, hook); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, ErrDuplicatePending
		}
		return nil, fmt.Errorf("create recommendation: %w", err)
	}
	return rec, nil
}

// PendingForReview returns an alert's pending recommendation with its
// assessment decrypted, for the reviewing program manager.
func (s *Service) PendingForReview(ctx context.Context, actor *model.User, alertID uuid.UUID) (*RecommendationView, error) {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, s.notFoundAsDenied(err)
	}
	if _, err := s.resolver.Resolve(ctx, actor, alert.ClientFileID, model.PermAlertReview); err != nil {
		return nil, s.deny(err)
	}

	rec, err := s.repo.PendingRecommendation(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("pending recommendation", err)
		}
		return nil, fmt.Errorf("load recommendation: %w", err)
	}

	assessment, err := s.encryptor.Decrypt(rec.AssessmentEncrypted)
	if err != nil {
		s.logger.Error(err, "assessment unreadable", "recommendation_id", rec.ID)
		if s.metrics != nil {
			s.metrics.DecryptionFailures.Inc()
		}
		assessment = "[unreadable]"
	}
	return &RecommendationView{Recommendation: rec, Assessment: assessment}, nil
}

// Review is the program-manager half of the two-person rule. Approval
// cancels the alert in the same transaction as the status flip;
// rejection requires a note and leaves the alert active. Either way the
// proposer and reviewer are distinct actors on the audit trail.
func (s *Service) Review(ctx context.Context, actor *model.User, recommendationID uuid.UUID, approve bool, reviewNote string) error {
	rec, err := s.repo.GetRecommendation(ctx, recommendationID)
	if err != nil {
		return s.notFoundAsDenied(err)
	}

	alert, err := s.repo.GetAlert(ctx, rec.AlertID)
	if err != nil {
		return s.notFoundAsDenied(err)
	}

	if _, err := s.resolver.Resolve(ctx, actor, alert.ClientFileID, model.PermAlertReview); err != nil {
		return s.deny(err)
	}

	if rec.Status != model.RecommendationPending {
		return ErrAlreadyReviewed
	}
	if !approve && reviewNote == "" {
		// Validated before any transition: the recommendation stays
		// pending and can be re-reviewed.
		return apperrors.Validation("a review note is required to reject", nil)
	}

	now := time.Now()
	rec.ReviewedBy = &actor.ID
	rec.ReviewedAt = &now
	rec.ReviewNote = reviewNote
	rec.UpdatedAt = now

	var entry audit.Entry
	if approve {
		rec.Status = model.RecommendationApproved
		entry = audit.Entry{
			Actor:        actor,
			Action:       model.AuditActionCancel,
			ResourceType: model.AuditResourceAlert,
			ResourceID:   alert.ID,
			Metadata: map[string]interface{}{
				"review_action":     "approved",
				"recommendation_id": rec.ID,
				"recommended_by":    rec.RecommendedBy,
			},
		}
	} else {
		rec.Status = model.RecommendationRejected
		entry = audit.Entry{
			Actor:        actor,
			Action:       model.AuditActionReview,
			ResourceType: model.AuditResourceRecommendation,
			ResourceID:   rec.ID,
			Metadata: map[string]interface{}{
				"review_action": "rejected",
				"alert_id":      alert.ID,
			},
		}
	}

	if err := s.repo.ResolveRecommendation(ctx, rec, approve, s.auditor.Hook(entry)); err != nil {
		return fmt.Errorf("resolve recommendation: %w", err)
	}
	return nil
}

// CancelDirect lets a program manager cancel without a recommendation;
// PM authority is sufficient on its own.
func (s *Service) CancelDirect(ctx context.Context, actor *model.User, alertID uuid.UUID, reason string) error {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return s.notFoundAsDenied(err)
	}

	if _, err := s.resolver.Resolve(ctx, actor, alert.ClientFileID, model.PermAlertCancel); err != nil {
		return s.deny(err)
	}
	if alert.Status != model.AlertActive {
		return apperrors.Validation("alert is not active", nil)
	}

	hook := s.auditor.Hook(audit.Entry{
		Actor:        actor,
		Action:       model.AuditActionCancel,
		ResourceType: model.AuditResourceAlert,
		ResourceID:   alert.ID,
		Metadata: map[string]interface{}{
			"review_action": "direct",
		},
	})
	if err := s.repo.CancelAlert(ctx, alertID, reason, hook); err != nil {
		return fmt.Errorf("cancel alert: %w", err)
	}
	return nil
}

func (s *Service) deny(err error) error {
	if errors.Is(err, access.ErrAccessDenied) {
		return apperrors.Forbidden(err)
	}
	return apperrors.Internal(err)
}

// notFoundAsDenied keeps missing records indistinguishable from denials.
func (s *Service) notFoundAsDenied(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Forbidden(err)
	}
	return apperrors.Internal(err)
}
