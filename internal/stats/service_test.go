package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-steersafe/internal/drive"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errStats = errors.New("stats error")

func TestApplySessionAddsToExisting(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT tokens, hours_driven FROM user_stats`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"tokens", "hours_driven"}).AddRow(10, 1.5))

	mock.ExpectExec(`INSERT INTO user_stats`).
		WithArgs("user-1", 13, 2.0, 3, 0.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	err = store.ApplySession(context.Background(), "user-1", drive.SessionSummary{DurationSec: 1800, TokensEarned: 3})
	if err != nil {
		t.Fatalf("apply session: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplySessionFirstDrive(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT tokens, hours_driven FROM user_stats`).
		WithArgs("user-2").
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectExec(`INSERT INTO user_stats`).
		WithArgs("user-2", 2, 0.1, 2, 0.1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	if err := store.ApplySession(context.Background(), "user-2", drive.SessionSummary{DurationSec: 360, TokensEarned: 2}); err != nil {
		t.Fatalf("apply session: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplySessionReadError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT tokens, hours_driven FROM user_stats`).
		WithArgs("user-3").
		WillReturnError(errStats)

	store := NewStore(mock)
	err = store.ApplySession(context.Background(), "user-3", drive.SessionSummary{DurationSec: 360, TokensEarned: 3})
	if !errors.Is(err, errStats) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestApplySessionWriteError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT tokens, hours_driven FROM user_stats`).
		WithArgs("user-4").
		WillReturnRows(pgxmock.NewRows([]string{"tokens", "hours_driven"}).AddRow(0, 0.0))

	mock.ExpectExec(`INSERT INTO user_stats`).
		WithArgs("user-4", 0, 0.0, 0, 0.0).
		WillReturnError(errStats)

	store := NewStore(mock)
	err = store.ApplySession(context.Background(), "user-4", drive.SessionSummary{})
	if !errors.Is(err, errStats) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestStoreWithoutDatabase(t *testing.T) {
	store := NewStore(nil)
	if err := store.ApplySession(context.Background(), "user-1", drive.SessionSummary{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	updated := time.Now()
	mock.ExpectQuery(`SELECT tokens, hours_driven, last_tokens, last_hours_driven, updated_at`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"tokens", "hours_driven", "last_tokens", "last_hours_driven", "updated_at"}).
			AddRow(12, 2.5, 2, 0.25, updated))

	mock.ExpectQuery(`SELECT tokens, hours_driven, last_tokens, last_hours_driven, updated_at`).
		WithArgs("user-new").
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectQuery(`SELECT tokens, hours_driven, last_tokens, last_hours_driven, updated_at`).
		WithArgs("user-err").
		WillReturnError(errStats)

	store := NewStore(mock)
	stats, err := store.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stats.Tokens != 12 || stats.LastHoursDriven != 0.25 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	stats, err = store.Get(context.Background(), "user-new")
	if err != nil || stats.Tokens != 0 || stats.UserID != "user-new" {
		t.Fatalf("expected zero stats for new user, got %+v %v", stats, err)
	}

	if _, err := store.Get(context.Background(), "user-err"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStoreSatisfiesRecorder(t *testing.T) {
	var _ drive.Recorder = NewStore(nil)
}
