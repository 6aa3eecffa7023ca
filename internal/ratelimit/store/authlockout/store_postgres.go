package authlockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hushmcp/internal/ratelimit/models"
	"hushmcp/pkg/requestcontext"
)

// PostgresStore persists auth lockout records in PostgreSQL. Lockout state
// survives restarts and is shared across replicas. The store is pure I/O;
// threshold decisions belong to the lockout service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed auth lockout store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	query := `
		SELECT identifier, failure_count, daily_failures, locked_until, last_failure_at, requires_captcha
		FROM auth_lockouts
		WHERE identifier = $1
	`
	record, err := scanAuthLockout(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auth lockout: %w", err)
	}
	return record, nil
}

// RecordFailure increments both failure counters in a single atomic upsert,
// creating the row on first failure. The single INSERT ... ON CONFLICT ...
// RETURNING prevents TOCTOU races where concurrent failures could undercount
// toward the hard lock threshold.
func (s *PostgresStore) RecordFailure(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, daily_failures, locked_until, last_failure_at, requires_captcha)
		VALUES ($1, 1, 1, NULL, $2, FALSE)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = auth_lockouts.failure_count + 1,
			daily_failures = auth_lockouts.daily_failures + 1,
			last_failure_at = $2
		RETURNING identifier, failure_count, daily_failures, locked_until, last_failure_at, requires_captcha
	`
	record, err := scanAuthLockout(s.db.QueryRowContext(ctx, query, identifier, now))
	if err != nil {
		return nil, fmt.Errorf("record auth failure: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Clear(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_lockouts WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("clear auth lockout: %w", err)
	}
	return nil
}

// IsLocked reports whether a hard lock is in force, and its expiry when so.
func (s *PostgresStore) IsLocked(ctx context.Context, identifier string) (bool, *time.Time, error) {
	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT locked_until FROM auth_lockouts WHERE identifier = $1`, identifier,
	).Scan(&lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("check auth lockout: %w", err)
	}
	if !lockedUntil.Valid || !requestcontext.Now(ctx).Before(lockedUntil.Time) {
		return false, nil, nil
	}
	until := lockedUntil.Time
	return true, &until, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.AuthLockout) error {
	if record == nil {
		return errors.New("auth lockout record is required")
	}
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, daily_failures, locked_until, last_failure_at, requires_captcha)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = EXCLUDED.failure_count,
			daily_failures = EXCLUDED.daily_failures,
			locked_until = EXCLUDED.locked_until,
			last_failure_at = EXCLUDED.last_failure_at,
			requires_captcha = EXCLUDED.requires_captcha
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Identifier,
		record.FailureCount,
		record.DailyFailures,
		record.LockedUntil,
		record.LastFailureAt,
		record.RequiresCaptcha,
	)
	if err != nil {
		return fmt.Errorf("update auth lockout: %w", err)
	}
	return nil
}

// PurgeExpired removes rows whose last failure is older than the idle cutoff
// and whose hard lock, if any, has expired. Satisfies the janitor's purger
// contract.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_lockouts
		WHERE last_failure_at < $1
		  AND (locked_until IS NULL OR locked_until < $2)
	`, now.Add(-purgeIdleAfter), now)
	if err != nil {
		return 0, fmt.Errorf("purge auth lockouts: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge auth lockouts rows affected: %w", err)
	}
	return purged, nil
}

type authLockoutRow interface {
	Scan(dest ...any) error
}

func scanAuthLockout(row authLockoutRow) (*models.AuthLockout, error) {
	var record models.AuthLockout
	var lockedUntil sql.NullTime
	if err := row.Scan(&record.Identifier, &record.FailureCount, &record.DailyFailures, &lockedUntil, &record.LastFailureAt, &record.RequiresCaptcha); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		record.LockedUntil = &lockedUntil.Time
	}
	return &record, nil
}
