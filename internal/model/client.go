package model

import (
	"github.com/google/uuid"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// ClientFile is the protected record as stored: identifying fields are
// ciphertext, plaintext exists only in memory inside a request. IsDemo
// is fixed at creation and mirrors the universe of principals allowed
// to touch the record.
type ClientFile struct {
	Base
	RecordID           string       `db:"record_id" json:"record_id"`
	FirstNameEncrypted []byte       `db:"first_name_encrypted" json:"-"`
	LastNameEncrypted  []byte       `db:"last_name_encrypted" json:"-"`
	PhoneEncrypted     []byte       `db:"phone_encrypted" json:"-"`
	IsDemo             bool         `db:"is_demo" json:"is_demo"`
	Status             ClientStatus `db:"status" json:"status"`
}

// Client is the decrypted, in-memory view handed to authorized callers.
type Client struct {
	ID        uuid.UUID    `json:"id"`
	RecordID  string       `json:"record_id"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Phone     string       `json:"phone"`
	IsDemo    bool         `json:"is_demo"`
	Status    ClientStatus `json:"status"`
}

type EnrolmentStatus string

const (
	Enrolled   EnrolmentStatus = "enrolled"
	Discharged EnrolmentStatus = "discharged"
)

// Enrolment ties a client file to a program.
type Enrolment struct {
	Base
	ClientFileID uuid.UUID       `db:"client_file_id" json:"client_file_id"`
	ProgramID    uuid.UUID       `db:"program_id" json:"program_id"`
	Status       EnrolmentStatus `db:"status" json:"status"`
}

// AccessBlock is a negative override: while active it denies the user
// all access to the client, before any positive grant is consulted.
type AccessBlock struct {
	Base
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	ClientFileID uuid.UUID `db:"client_file_id" json:"client_file_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	Reason       string    `db:"reason" json:"reason"`
}

type CreateClientRequest struct {
	FirstName string   `json:"first_name" binding:"required"`
	LastName  string   `json:"last_name" binding:"required"`
	Phone     string   `json:"phone"`
	Programs  []string `json:"programs" binding:"required,min=1"`
}

type UpdateClientRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}
