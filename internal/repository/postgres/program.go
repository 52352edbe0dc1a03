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

type programRepository struct {
	BaseRepository
}

func NewProgramRepository(db *sqlx.DB) repository.ProgramRepository {
	return &programRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *programRepository) Create(ctx context.Context, program *model.Program, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO programs (id, name, description, colour_hex, is_confidential, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.ExecContext(ctx, query,
			program.ID,
			program.Name,
			program.Description,
			program.ColourHex,
			program.IsConfidential,
			program.Status,
			program.CreatedAt,
			program.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create program: %w", err)
		}
		return nil
	})
}

func (r *programRepository) Get(ctx context.Context, id uuid.UUID) (*model.Program, error) {
	query := `SELECT * FROM programs WHERE id = $1`
	var program model.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &program, nil
}

// Update writes program attributes. is_confidential is ORed with its
// stored value, so the flag only ever moves false to true regardless of
// what the caller sends.
func (r *programRepository) Update(ctx context.Context, program *model.Program, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			UPDATE programs
			SET name = $1, description = $2, colour_hex = $3,
				is_confidential = is_confidential OR $4,
				status = $5, updated_at = $6
			WHERE id = $7
		`
		_, err := tx.ExecContext(ctx, query,
			program.Name,
			program.Description,
			program.ColourHex,
			program.IsConfidential,
			program.Status,
			time.Now(),
			program.ID,
		)
		return err
	})
}

func (r *programRepository) List(ctx context.Context) ([]*model.Program, error) {
	query := `SELECT * FROM programs ORDER BY name`
	var programs []*model.Program
	err := r.db.SelectContext(ctx, &programs, query)
	return programs, err
}

func (r *programRepository) GrantRole(ctx context.Context, grant *model.UserProgramRole, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO user_program_roles (id, user_id, program_id, role, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.ExecContext(ctx, query,
			grant.ID, grant.UserID, grant.ProgramID, grant.Role, grant.Status,
			grant.CreatedAt, grant.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
		return nil
	})
}

func (r *programRepository) RevokeRole(ctx context.Context, userID, programID uuid.UUID, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			UPDATE user_program_roles
			SET status = $1, updated_at = $2
			WHERE user_id = $3 AND program_id = $4 AND status = $5
		`
		if _, err := tx.ExecContext(ctx, query,
			model.GrantRemoved, time.Now(), userID, programID, model.GrantActive,
		); err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}
		return nil
	})
}

func (r *programRepository) ActiveGrantsForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserProgramRole, error) {
	query := `SELECT * FROM user_program_roles WHERE user_id = $1 AND status = $2`
	var grants []*model.UserProgramRole
	err := r.db.SelectContext(ctx, &grants, query, userID, model.GrantActive)
	return grants, err
}
