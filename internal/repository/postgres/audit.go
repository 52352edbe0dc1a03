package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
)

// auditRepository writes to the dedicated audit database, never the
// primary one.
type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *auditRepository) Create(ctx context.Context, record *model.AuditRecord) error {
	query := `
		INSERT INTO audit_records (
			id, actor_id, actor_display_name, action, resource_type, resource_id,
			metadata, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.ActorID,
		record.ActorDisplayName,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		record.Metadata,
		record.RequestID,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditRecord, error) {
	query := `SELECT * FROM audit_records WHERE 1=1`
	var args []interface{}

	if v, ok := filters["actor_id"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if v, ok := filters["action"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if v, ok := filters["resource_type"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND resource_type = $%d", len(args))
	}
	if v, ok := filters["resource_id"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND resource_id = $%d", len(args))
	}
	if v, ok := filters["start_date"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if v, ok := filters["end_date"]; ok {
		args = append(args, v)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	var records []*model.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return records, nil
}

func (r *auditRepository) ListUnpublished(ctx context.Context, limit int) ([]*model.AuditRecord, error) {
	query := `
		SELECT * FROM audit_records
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	var records []*model.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unpublished audit records: %w", err)
	}
	return records, nil
}

func (r *auditRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_records SET published_at = $1 WHERE id = ANY($2)`
	_, err := r.db.ExecContext(ctx, query, at, pq.Array(ids))
	return err
}

func (r *auditRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM audit_records WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", err)
	}
	return result.RowsAffected()
}
