package history

import "time"

// Session is one finished drive as stored in drive_sessions.
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	DurationSec       float64   `json:"duration_sec"`
	DistanceKm        float64   `json:"distance_km"`
	TokensEarned      int       `json:"tokens_earned"`
	Pickups           int       `json:"pickups"`
	SpeedLimitExceeds int       `json:"speed_limit_exceeds"`
}

// Summary adds derived figures to a stored session.
type Summary struct {
	Session
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
	PickupsPerHour  float64 `json:"pickups_per_hour"`
}
