package history

import (
	"context"
	"errors"
	"fmt"

	"backend-steersafe/internal/db"
	"backend-steersafe/internal/drive"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var (
	ErrUnavailable = errors.New("drive history unavailable")
	ErrNotFound    = errors.New("drive not found")
)

type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// ApplySession appends a finished drive to the user's history.
func (s *Store) ApplySession(ctx context.Context, userID string, summary drive.SessionSummary) error {
	if s.db == nil {
		return ErrUnavailable
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO drive_sessions (id, user_id, started_at, ended_at, duration_sec, distance_km, tokens_earned, pickups, speed_limit_exceeds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, uuid.NewString(), userID, summary.StartedAt, summary.EndedAt, summary.DurationSec,
		summary.DistanceKm, summary.TokensEarned, summary.Pickups, summary.SpeedLimitExceeds)
	if err != nil {
		return fmt.Errorf("insert drive session: %w", err)
	}
	return nil
}

// List returns the user's most recent drives, newest first.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]Session, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_sec, distance_km, tokens_earned, pickups, speed_limit_exceeds
		FROM drive_sessions WHERE user_id=$1
		ORDER BY ended_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var d Session
		if err := rows.Scan(&d.ID, &d.UserID, &d.StartedAt, &d.EndedAt, &d.DurationSec, &d.DistanceKm, &d.TokensEarned, &d.Pickups, &d.SpeedLimitExceeds); err != nil {
			return nil, err
		}
		sessions = append(sessions, d)
	}
	return sessions, rows.Err()
}

// Summary loads one of the user's drives with its averages.
func (s *Store) Summary(ctx context.Context, userID, id string) (Summary, error) {
	if s.db == nil {
		return Summary{}, ErrUnavailable
	}

	var d Session
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_sec, distance_km, tokens_earned, pickups, speed_limit_exceeds
		FROM drive_sessions WHERE id=$1 AND user_id=$2
	`, id, userID).Scan(&d.ID, &d.UserID, &d.StartedAt, &d.EndedAt, &d.DurationSec, &d.DistanceKm, &d.TokensEarned, &d.Pickups, &d.SpeedLimitExceeds)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Session: d}
	if hours := d.DurationSec / 3600; hours > 0 {
		summary.AverageSpeedKmh = d.DistanceKm / hours
		summary.PickupsPerHour = float64(d.Pickups) / hours
	}
	return summary, nil
}
