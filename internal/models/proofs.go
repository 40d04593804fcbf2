package models

import (
	"time"
)

// Proof status values persisted in the proofs table. StatusNotSubmitted is
// synthetic: it is only ever returned for users with no record.
const (
	StatusPending      = "pending"
	StatusApproved     = "approved"
	StatusRejected     = "rejected"
	StatusNotSubmitted = "not_submitted"
)

// ProofRecord is the single current proof row for a user.
type ProofRecord struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Status    string    `json:"status" db:"status"`
	Reason    *string   `json:"reason" db:"reason"`
	FileURL   *string   `json:"file_url" db:"file_url"`
	OcrText   *string   `json:"ocr_text" db:"ocr_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProofFields is the mutable subset written on upsert/finalize.
type ProofFields struct {
	Status  string
	Reason  *string
	FileURL *string
	OcrText *string
}

type ProofResponse struct {
	Status  string  `json:"status"`
	Reason  *string `json:"reason"`
	FileURL *string `json:"file_url"`
}

type ProofStatusResponse struct {
	Status    string     `json:"status"`
	Reason    *string    `json:"reason,omitempty"`
	FileURL   *string    `json:"file_url,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
