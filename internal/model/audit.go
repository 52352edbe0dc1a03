package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one append-only entry in the audit store. The audit
// store lives on its own database so an outage there cannot corrupt
// primary data; writes to it still fail the triggering action.
type AuditRecord struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ActorID          uuid.UUID       `db:"actor_id" json:"actor_id"`
	ActorDisplayName string          `db:"actor_display_name" json:"actor_display_name"`
	Action           string          `db:"action" json:"action"`
	ResourceType     string          `db:"resource_type" json:"resource_type"`
	ResourceID       uuid.UUID       `db:"resource_id" json:"resource_id"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	RequestID        string          `db:"request_id" json:"request_id"`
	PublishedAt      *time.Time      `db:"published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

const (
	// Actions
	AuditActionCreate          = "create"
	AuditActionUpdate          = "update"
	AuditActionCancel          = "cancel"
	AuditActionRecommendCancel = "recommend_cancel"
	AuditActionReview          = "review"
	AuditActionGrantRole       = "grant_role"
	AuditActionRevokeRole      = "revoke_role"
	AuditActionImpersonate     = "impersonate"
	AuditActionInvite          = "invite"

	// Resource types
	AuditResourceAlert          = "alert"
	AuditResourceRecommendation = "cancellation_recommendation"
	AuditResourceClient         = "client_file"
	AuditResourceProgram        = "program"
	AuditResourceUser           = "user"
	AuditResourceInvite         = "invite"
	AuditResourceRoleGrant      = "user_program_role"
)
