package models

import "time"

// LoginRequest is shared by every login. The identifier is
// a username or an email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// TokenResponse carries the subject twice: the web client stores it as id.
type TokenResponse struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	Scope     string    `json:"scope"`
	Subject   string    `json:"subject"`
}
