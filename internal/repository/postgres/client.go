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

type clientRepository struct {
	BaseRepository
}

func NewClientRepository(db *sqlx.DB) repository.ClientRepository {
	return &clientRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *clientRepository) Create(ctx context.Context, client *model.ClientFile, programIDs []uuid.UUID, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO client_files (id, record_id, first_name_encrypted, last_name_encrypted,
				phone_encrypted, is_demo, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		if _, err := tx.ExecContext(ctx, query,
			client.ID,
			client.RecordID,
			client.FirstNameEncrypted,
			client.LastNameEncrypted,
			client.PhoneEncrypted,
			client.IsDemo,
			client.Status,
			client.CreatedAt,
			client.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create client file: %w", err)
		}

		now := time.Now()
		for _, programID := range programIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO enrolments (id, client_file_id, program_id, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New(), client.ID, programID, model.Enrolled, now, now,
			); err != nil {
				return fmt.Errorf("failed to enrol client: %w", err)
			}
		}
		return nil
	})
}

func (r *clientRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClientFile, error) {
	query := `SELECT * FROM client_files WHERE id = $1`
	var client model.ClientFile
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.ClientFile, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			UPDATE client_files
			SET first_name_encrypted = $1, last_name_encrypted = $2, phone_encrypted = $3,
				status = $4, updated_at = $5
			WHERE id = $6
		`
		if _, err := tx.ExecContext(ctx, query,
			client.FirstNameEncrypted,
			client.LastNameEncrypted,
			client.PhoneEncrypted,
			client.Status,
			time.Now(),
			client.ID,
		); err != nil {
			return fmt.Errorf("failed to update client file: %w", err)
		}
		return nil
	})
}

func (r *clientRepository) ListByUniverse(ctx context.Context, isDemo bool) ([]*model.ClientFile, error) {
	query := `SELECT * FROM client_files WHERE is_demo = $1 ORDER BY created_at`
	var clients []*model.ClientFile
	err := r.db.SelectContext(ctx, &clients, query, isDemo)
	return clients, err
}

func (r *clientRepository) EnrolledProgramIDs(ctx context.Context, clientFileID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT program_id FROM enrolments WHERE client_file_id = $1 AND status = $2`
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, clientFileID, model.Enrolled)
	return ids, err
}

func (r *clientRepository) Discharge(ctx context.Context, clientFileID, programID uuid.UUID) error {
	query := `
		UPDATE enrolments SET status = $1, updated_at = $2
		WHERE client_file_id = $3 AND program_id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		model.Discharged, time.Now(), clientFileID, programID, model.Enrolled)
	return err
}

func (r *clientRepository) HasActiveBlock(ctx context.Context, userID, clientFileID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM access_blocks
			WHERE user_id = $1 AND client_file_id = $2 AND is_active
		)
	`
	var blocked bool
	if err := r.db.GetContext(ctx, &blocked, query, userID, clientFileID); err != nil {
		return false, err
	}
	return blocked, nil
}

func (r *clientRepository) CreateBlock(ctx context.Context, block *model.AccessBlock) error {
	query := `
		INSERT INTO access_blocks (id, user_id, client_file_id, is_active, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		block.ID, block.UserID, block.ClientFileID, block.IsActive, block.Reason,
		block.CreatedAt, block.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access block: %w", err)
	}
	return nil
}
