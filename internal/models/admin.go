package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// AdminAccessRequest is a prospective admin asking to manage queues.
// Only PENDING requests can be resolved.
type AdminAccessRequest struct {
	bun.BaseModel `bun:"table:admin_access_requests"`

	ID           string        `bun:"id,pk" json:"id"`
	BusinessName string        `bun:"business_name,notnull" json:"businessName"`
	OwnerName    string        `bun:"owner_name,notnull" json:"ownerName"`
	Email        string        `bun:"email,notnull" json:"email"`
	Phone        string        `bun:"phone,notnull" json:"phone"`
	BusinessType string        `bun:"business_type,notnull" json:"businessType"`
	Status       RequestStatus `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time     `bun:"created_at,notnull" json:"createdAt"`
	ReviewedAt   *time.Time    `bun:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy   string        `bun:"reviewed_by" json:"reviewedBy,omitempty"`
}

type AccessRequestInput struct {
	BusinessName string `json:"businessName"`
	OwnerName    string `json:"ownerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	BusinessType string `json:"businessType"`
}

// AdminAccount is an event admin allowed to log in and run queues.
type AdminAccount struct {
	bun.BaseModel `bun:"table:admin_accounts"`

	ID           string    `bun:"id,pk" json:"id"`
	Identifier   string    `bun:"identifier,notnull,unique" json:"identifier"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	BusinessName string    `bun:"business_name" json:"businessName,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	RequestID    string    `bun:"request_id" json:"requestId,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type SignUpRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}
