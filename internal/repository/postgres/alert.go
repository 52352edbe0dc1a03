package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
)

type alertRepository struct {
	BaseRepository
}

func NewAlertRepository(db *sqlx.DB) repository.AlertRepository {
	return &alertRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *model.Alert, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO alerts (id, client_file_id, content_encrypted, status, status_reason,
				author_id, author_program_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		if _, err := tx.ExecContext(ctx, query,
			alert.ID,
			alert.ClientFileID,
			alert.ContentEncrypted,
			alert.Status,
			alert.StatusReason,
			alert.AuthorID,
			alert.AuthorProgramID,
			alert.CreatedAt,
			alert.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
		return nil
	})
}

func (r *alertRepository) GetAlert(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	query := `SELECT * FROM alerts WHERE id = $1`
	var alert model.Alert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &alert, nil
}

func (r *alertRepository) ListAlertsForClient(ctx context.Context, clientFileID uuid.UUID) ([]*model.Alert, error) {
	query := `SELECT * FROM alerts WHERE client_file_id = $1 ORDER BY created_at DESC`
	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, clientFileID)
	return alerts, err
}

func (r *alertRepository) CancelAlert(ctx context.Context, alertID uuid.UUID, reason string, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		return cancelAlertTx(ctx, tx, alertID, reason)
	})
}

func cancelAlertTx(ctx context.Context, tx *sqlx.Tx, alertID uuid.UUID, reason string) error {
	query := `
		UPDATE alerts SET status = $1, status_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := tx.ExecContext(ctx, query,
		model.AlertCancelled, reason, time.Now(), alertID, model.AlertActive)
	if err != nil {
		return fmt.Errorf("failed to cancel alert: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateRecommendation inserts the pending row. A partial unique index
// on (alert_id) WHERE status = 'pending' backs the one-pending-per-alert
// rule; a violation surfaces as ErrDuplicatePending.
func (r *alertRepository) CreateRecommendation(ctx context.Context, rec *model.CancellationRecommendation, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO cancellation_recommendations (id, alert_id, recommended_by,
				assessment_encrypted, status, review_note, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.ExecContext(ctx, query,
			rec.ID,
			rec.AlertID,
			rec.RecommendedBy,
			rec.AssessmentEncrypted,
			rec.Status,
			rec.ReviewNote,
			rec.CreatedAt,
			rec.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicatePending
			}
			return fmt.Errorf("failed to create recommendation: %w", err)
		}
		return nil
	})
}

func (r *alertRepository) GetRecommendation(ctx context.Context, id uuid.UUID) (*model.CancellationRecommendation, error) {
	query := `SELECT * FROM cancellation_recommendations WHERE id = $1`
	var rec model.CancellationRecommendation
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &rec, nil
}

func (r *alertRepository) PendingRecommendation(ctx context.Context, alertID uuid.UUID) (*model.CancellationRecommendation, error) {
	query := `SELECT * FROM cancellation_recommendations WHERE alert_id = $1 AND status = $2`
	var rec model.CancellationRecommendation
	if err := r.db.GetContext(ctx, &rec, query, alertID, model.RecommendationPending); err != nil {
		return nil, mapNotFound(err)
	}
	return &rec, nil
}

// ResolveRecommendation finalizes the review; on approval the alert is
// cancelled inside the same transaction, so the two-person rule's
// outcome is atomic.
func (r *alertRepository) ResolveRecommendation(ctx context.Context, rec *model.CancellationRecommendation, cancelAlert bool, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			UPDATE cancellation_recommendations
			SET status = $1, reviewed_by = $2, review_note = $3, reviewed_at = $4, updated_at = $5
			WHERE id = $6 AND status = $7
		`
		res, err := tx.ExecContext(ctx, query,
			rec.Status, rec.ReviewedBy, rec.ReviewNote, rec.ReviewedAt, time.Now(),
			rec.ID, model.RecommendationPending,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve recommendation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}

		if cancelAlert {
			return cancelAlertTx(ctx, tx, rec.AlertID, "cancellation approved")
		}
		return nil
	})
}
