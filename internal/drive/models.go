package drive

import (
	"context"
	"errors"
	"time"
)

// AccelSample is one vertical-axis accelerometer reading, in g. At is the
// phone's timestamp and is only logged.
type AccelSample struct {
	Z  float64   `json:"z"`
	At time.Time `json:"at"`
}

type LocationSample struct {
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	SpeedMps float64   `json:"speed_mps"`
	At       time.Time `json:"at"`
}

type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SessionSummary is produced once per drive, when it stops.
type SessionSummary struct {
	UserID            string    `json:"user_id"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	DurationSec       float64   `json:"duration_sec"`
	DistanceKm        float64   `json:"distance_km"`
	TokensEarned      int       `json:"tokens_earned"`
	Pickups           int       `json:"pickups"`
	SpeedLimitExceeds int       `json:"speed_limit_exceeds"`
}

// State is a point-in-time copy of a tracker, safe to hand to callers.
type State struct {
	UserID            string     `json:"user_id"`
	Active            bool       `json:"active"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	ElapsedSec        float64    `json:"elapsed_sec"`
	DistanceKm        float64    `json:"distance_km"`
	Pickups           int        `json:"pickups"`
	LifetimePickups   int        `json:"lifetime_pickups"`
	LastPickupAt      *time.Time `json:"last_pickup_at,omitempty"`
	SpeedLimitExceeds int        `json:"speed_limit_exceeds"`
	WarningVisible    bool       `json:"warning_visible"`
	Position          *Position  `json:"position,omitempty"`
	SpeedKmh          *float64   `json:"speed_kmh,omitempty"`
	SpeedLimitKmh     *float64   `json:"speed_limit_kmh,omitempty"`
}

type EventType string

const (
	EventStarted        EventType = "drive_started"
	EventTick           EventType = "drive_tick"
	EventPickupWarning  EventType = "pickup_warning"
	EventWarningCleared EventType = "warning_cleared"
	EventSpeedLimit     EventType = "speed_limit"
	EventSpeeding       EventType = "speeding"
	EventStopped        EventType = "drive_stopped"
)

type Event struct {
	Type    EventType       `json:"type"`
	UserID  string          `json:"user_id"`
	At      time.Time       `json:"at"`
	State   State           `json:"state"`
	Summary *SessionSummary `json:"summary,omitempty"`
}

// Notifier receives every state transition of a tracker. It is called with
// the tracker lock held and must not call back into the tracker.
type Notifier interface {
	Notify(event Event)
}

// Recorder persists the outcome of a finished drive.
type Recorder interface {
	ApplySession(ctx context.Context, userID string, summary SessionSummary) error
}

// Recorders applies a summary to every recorder in order. A failing recorder
// does not keep the rest from running.
type Recorders []Recorder

func (rs Recorders) ApplySession(ctx context.Context, userID string, summary SessionSummary) error {
	var errs []error
	for _, r := range rs {
		if err := r.ApplySession(ctx, userID, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SpeedLimitProvider resolves the posted speed limit, in km/h, at a position.
type SpeedLimitProvider interface {
	SpeedLimit(ctx context.Context, lat, lng float64) (float64, error)
}
