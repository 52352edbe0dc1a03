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

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *userRepository) Create(ctx context.Context, user *model.User, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (id, username, display_name, email_encrypted, password_hash,
				is_admin, is_demo, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.ExecContext(ctx, query,
			user.ID,
			user.Username,
			user.DisplayName,
			user.EmailEncrypted,
			user.PasswordHash,
			user.IsAdmin,
			user.IsDemo,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT * FROM users WHERE username = $1`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *userRepository) CreateInvite(ctx context.Context, invite *model.Invite, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO invites (id, code, role, is_admin, created_by, expires_at, email_encrypted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		if _, err := tx.ExecContext(ctx, query,
			invite.ID, invite.Code, invite.Role, invite.IsAdmin,
			invite.CreatedBy, invite.ExpiresAt, invite.EmailEncrypted,
			invite.CreatedAt, invite.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}

		for _, programID := range invite.Programs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO invite_programs (invite_id, program_id) VALUES ($1, $2)`,
				invite.ID, programID,
			); err != nil {
				return fmt.Errorf("failed to attach invite program: %w", err)
			}
		}
		return nil
	})
}

func (r *userRepository) GetInviteByCode(ctx context.Context, code uuid.UUID) (*model.Invite, error) {
	query := `SELECT * FROM invites WHERE code = $1`
	var invite model.Invite
	if err := r.db.GetContext(ctx, &invite, query, code); err != nil {
		return nil, mapNotFound(err)
	}

	if err := r.db.SelectContext(ctx, &invite.Programs,
		`SELECT program_id FROM invite_programs WHERE invite_id = $1`, invite.ID,
	); err != nil {
		return nil, err
	}
	return &invite, nil
}

// ConsumeInvite provisions the user, marks the invite used, and creates
// its role grants in one transaction. The invite row is claimed with a
// used_by guard so two concurrent acceptances cannot both succeed.
func (r *userRepository) ConsumeInvite(ctx context.Context, invite *model.Invite, user *model.User, hook repository.TxHook) error {
	return r.WithTx(ctx, hook, func(tx *sqlx.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx,
			`UPDATE invites SET used_by = $1, used_at = $2 WHERE id = $3 AND used_by IS NULL`,
			user.ID, now, invite.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to claim invite: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, display_name, email_encrypted, password_hash,
				is_admin, is_demo, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			user.ID, user.Username, user.DisplayName, user.EmailEncrypted, user.PasswordHash,
			user.IsAdmin, user.IsDemo, user.IsActive, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		for _, programID := range invite.Programs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_program_roles (id, user_id, program_id, role, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), user.ID, programID, invite.Role, model.GrantActive, now, now,
			); err != nil {
				return fmt.Errorf("failed to create invite grant: %w", err)
			}
		}

		invite.UsedBy = &user.ID
		invite.UsedAt = &now
		return nil
	})
}
