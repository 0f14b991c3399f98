package stats

import (
	"context"
	"errors"
	"fmt"

	"backend-steersafe/internal/db"
	"backend-steersafe/internal/drive"

	"github.com/jackc/pgx/v5"
)

var ErrUnavailable = errors.New("stats store unavailable")

type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// ApplySession adds a finished drive to the user's totals. The read and the
// write are separate statements; two drives finishing at once for the same
// user can lose one update.
func (s *Store) ApplySession(ctx context.Context, userID string, summary drive.SessionSummary) error {
	if s.db == nil {
		return ErrUnavailable
	}

	var tokens int
	var hours float64
	err := s.db.QueryRow(ctx, `
		SELECT tokens, hours_driven FROM user_stats WHERE user_id=$1
	`, userID).Scan(&tokens, &hours)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read user stats: %w", err)
	}

	sessionHours := summary.DurationSec / 3600
	_, err = s.db.Exec(ctx, `
		INSERT INTO user_stats (user_id, tokens, hours_driven, last_tokens, last_hours_driven, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET tokens = EXCLUDED.tokens,
		    hours_driven = EXCLUDED.hours_driven,
		    last_tokens = EXCLUDED.last_tokens,
		    last_hours_driven = EXCLUDED.last_hours_driven,
		    updated_at = EXCLUDED.updated_at
	`, userID, tokens+summary.TokensEarned, hours+sessionHours, summary.TokensEarned, sessionHours)
	if err != nil {
		return fmt.Errorf("write user stats: %w", err)
	}
	return nil
}

// Get returns zeroed stats for users who have not finished a drive yet.
func (s *Store) Get(ctx context.Context, userID string) (UserStats, error) {
	if s.db == nil {
		return UserStats{}, ErrUnavailable
	}

	stats := UserStats{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT tokens, hours_driven, last_tokens, last_hours_driven, updated_at
		FROM user_stats WHERE user_id=$1
	`, userID).Scan(&stats.Tokens, &stats.HoursDriven, &stats.LastTokens, &stats.LastHoursDriven, &stats.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return UserStats{}, err
	}
	return stats, nil
}
