package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Customer is someone who books tickets under an account instead of
// anonymously. Their tickets carry CustomerID.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	Phone        string    `bun:"phone" json:"phone,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type CustomerSignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}
