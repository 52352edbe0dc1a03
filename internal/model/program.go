package model

import (
	"github.com/google/uuid"
)

type ProgramStatus string

const (
	ProgramStatusActive   ProgramStatus = "active"
	ProgramStatusArchived ProgramStatus = "archived"
)

// Program is a named scope of operation (a service line). IsConfidential
// is one-way: once set it can never be cleared, enforced at the data
// layer and not just here.
type Program struct {
	Base
	Name           string        `db:"name" json:"name"`
	Description    string        `db:"description" json:"description"`
	ColourHex      string        `db:"colour_hex" json:"colour_hex"`
	IsConfidential bool          `db:"is_confidential" json:"is_confidential"`
	Status         ProgramStatus `db:"status" json:"status"`
}

type GrantStatus string

const (
	GrantActive  GrantStatus = "active"
	GrantRemoved GrantStatus = "removed"
)

// UserProgramRole grants a user one role within one program. Grants are
// independent rows: the same user may hold different roles in different
// programs at once. Revocation is a soft status change so history
// survives for audit.
type UserProgramRole struct {
	Base
	UserID    uuid.UUID   `db:"user_id" json:"user_id"`
	ProgramID uuid.UUID   `db:"program_id" json:"program_id"`
	Role      Role        `db:"role" json:"role"`
	Status    GrantStatus `db:"status" json:"status"`
}

type CreateProgramRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	ColourHex      string `json:"colour_hex"`
	IsConfidential bool   `json:"is_confidential"`
}

type UpdateProgramRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	ColourHex      *string `json:"colour_hex"`
	IsConfidential *bool   `json:"is_confidential"`
}

type GrantRoleRequest struct {
	UserID    string `json:"user_id" binding:"required,uuid"`
	ProgramID string `json:"program_id" binding:"required,uuid"`
	Role      string `json:"role" binding:"required,rolename"`
}
