package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Event is a queueing session. Events are deactivated, never deleted,
// while tickets reference them.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                    string     `bun:"id,pk" json:"id"`
	Name                  string     `bun:"name,notnull" json:"name"`
	Description           string     `bun:"description" json:"description,omitempty"`
	Location              string     `bun:"location" json:"location,omitempty"`
	EventDate             *time.Time `bun:"event_date" json:"eventDate,omitempty"`
	MaxTokens             int        `bun:"max_tokens,notnull" json:"maxTokens"`
	CurrentTokenCount     int        `bun:"current_token_count,notnull" json:"currentTokenCount"`
	IssuedTokens          int        `bun:"issued_tokens,notnull" json:"issuedTokens"`
	AverageServiceMinutes int        `bun:"average_service_minutes,notnull" json:"averageServiceMinutes"`
	IsActive              bool       `bun:"is_active,notnull" json:"isActive"`
	CreatedBy             string     `bun:"created_by" json:"createdBy,omitempty"`
	CreatedAt             time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero" json:"updatedAt"`
}

type eventJSON Event

// MarshalJSON also writes the name as eventName, which the web client reads.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		eventJSON
		EventName string `json:"eventName"`
	}{eventJSON: eventJSON(e), EventName: e.Name})
}

// RemainingTokens is how many positions can still be allocated.
func (e *Event) RemainingTokens() int {
	if e.IssuedTokens >= e.MaxTokens {
		return 0
	}
	return e.MaxTokens - e.IssuedTokens
}

// CreateEventRequest is the admin payload for a new event. The web client
// sends the name as eventName.
type CreateEventRequest struct {
	Name                  string     `json:"name"`
	EventName             string     `json:"eventName"`
	Description           string     `json:"description"`
	Location              string     `json:"location"`
	EventDate             *time.Time `json:"eventDate,omitempty"`
	MaxTokens             int        `json:"maxTokens"`
	AverageServiceMinutes *int       `json:"averageServiceMinutes"`
	IsActive              *bool      `json:"isActive"`
}

// DisplayName resolves the name from either accepted field.
func (r CreateEventRequest) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.EventName
}

// EventFilter narrows event listings.
type EventFilter struct {
	CreatedBy  string
	ActiveOnly bool
}
