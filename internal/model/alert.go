package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertCancelled AlertStatus = "cancelled"
)

// Alert is a safety flag on a client file. Authorship is immutable:
// author and authoring program are set at creation and never change.
type Alert struct {
	Base
	ClientFileID     uuid.UUID   `db:"client_file_id" json:"client_file_id"`
	ContentEncrypted []byte      `db:"content_encrypted" json:"-"`
	Status           AlertStatus `db:"status" json:"status"`
	StatusReason     string      `db:"status_reason" json:"status_reason"`
	AuthorID         uuid.UUID   `db:"author_id" json:"author_id"`
	AuthorProgramID  uuid.UUID   `db:"author_program_id" json:"author_program_id"`
}

type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationApproved RecommendationStatus = "approved"
	RecommendationRejected RecommendationStatus = "rejected"
)

// CancellationRecommendation is the two-person rule's pending half.
// Staff cannot cancel a safety alert; they submit an assessment and a
// program manager reviews it. At most one pending recommendation may
// exist per alert, enforced by a partial unique index.
type CancellationRecommendation struct {
	Base
	AlertID             uuid.UUID            `db:"alert_id" json:"alert_id"`
	RecommendedBy       uuid.UUID            `db:"recommended_by" json:"recommended_by"`
	AssessmentEncrypted []byte               `db:"assessment_encrypted" json:"-"`
	Status              RecommendationStatus `db:"status" json:"status"`
	ReviewedBy          *uuid.UUID           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote          string               `db:"review_note" json:"review_note"`
	ReviewedAt          *time.Time           `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

type CreateAlertRequest struct {
	Content string `json:"content" binding:"required"`
}

type RecommendCancellationRequest struct {
	Assessment string `json:"assessment" binding:"required"`
}

type ReviewRecommendationRequest struct {
	// Action is "approve" or "reject"; a reject requires a note.
	Action     string `json:"action" binding:"required,oneof=approve reject"`
	ReviewNote string `json:"review_note"`
}

type CancelAlertRequest struct {
	Reason string `json:"reason"`
}
