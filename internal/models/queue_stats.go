package models

// QueueStats summarizes one event's queue for the admin dashboard.
type QueueStats struct {
	EventID               string  `json:"eventId"`
	MaxTokens             int     `json:"maxTokens"`
	IssuedTokens          int     `json:"issuedTokens"`
	CurrentTokenCount     int     `json:"currentTokenCount"`
	Waiting               int     `json:"waiting"`
	Called                int     `json:"called"`
	Served                int     `json:"served"`
	Skipped               int     `json:"skipped"`
	Cancelled             int     `json:"cancelled"`
	AverageWaitMinutes    float64 `json:"averageWaitMinutes"`
	AverageServiceMinutes float64 `json:"averageServiceMinutes"`
}
