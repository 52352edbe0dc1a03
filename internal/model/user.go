package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a principal. IsAdmin governs system configuration only and
// grants no client-data access. IsDemo is set at provisioning and never
// mutated: demo and real principals live in disjoint universes.
type User struct {
	Base
	Username       string     `db:"username" json:"username"`
	DisplayName    string     `db:"display_name" json:"display_name"`
	EmailEncrypted []byte     `db:"email_encrypted" json:"-"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	IsAdmin        bool       `db:"is_admin" json:"is_admin"`
	IsDemo         bool       `db:"is_demo" json:"is_demo"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	LastLoginAt    *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// Invite is a single-use provisioning link carrying a role and optional
// program assignments. Accepting it creates the user and its grants.
type Invite struct {
	Base
	Code      uuid.UUID   `db:"code" json:"code"`
	Role      Role        `db:"role" json:"role"`
	IsAdmin   bool        `db:"is_admin" json:"is_admin"`
	CreatedBy uuid.UUID   `db:"created_by" json:"created_by"`
	ExpiresAt time.Time   `db:"expires_at" json:"expires_at"`
	UsedBy    *uuid.UUID  `db:"used_by" json:"used_by,omitempty"`
	UsedAt    *time.Time  `db:"used_at" json:"used_at,omitempty"`
	Programs  []uuid.UUID `db:"-" json:"programs"`
	// The recipient address rests encrypted, like every client
	// identifier; the plaintext exists only while the mail is sent.
	EmailEncrypted []byte `db:"email_encrypted" json:"-"`
}

func (i *Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func (i *Invite) IsUsed() bool {
	return i.UsedBy != nil
}

type CreateInviteRequest struct {
	Role     string   `json:"role" binding:"required,rolename"`
	Email    string   `json:"email" binding:"required,email"`
	Programs []string `json:"programs"`
}

type AcceptInviteRequest struct {
	Code        string `json:"code" binding:"required,uuid"`
	Username    string `json:"username" binding:"required,min=3"`
	DisplayName string `json:"display_name" binding:"required"`
	Password    string `json:"password" binding:"required,min=10"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ImpersonateRequest struct {
	TargetID string `json:"target_id" binding:"required,uuid"`
}
