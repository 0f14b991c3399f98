package stats

import "time"

// UserStats is the per-user reward ledger. Last* fields describe the most
// recent drive only.
type UserStats struct {
	UserID          string    `json:"user_id"`
	Tokens          int       `json:"tokens"`
	HoursDriven     float64   `json:"hours_driven"`
	LastTokens      int       `json:"last_tokens"`
	LastHoursDriven float64   `json:"last_hours_driven"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}
