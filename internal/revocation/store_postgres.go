package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRegistry persists revoked credential IDs in PostgreSQL.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry constructs a PostgreSQL-backed revocation registry.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Revoke records the credential as revoked until expiresAt.
// ON CONFLICT DO NOTHING keeps the original row, so the first revocation wins.
func (r *PostgresRegistry) Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error {
	if credentialID == "" {
		return nil
	}
	if err := validateExpiry(expiresAt); err != nil {
		return err
	}
	if !expiresAt.After(revokedAt) {
		// Already expired; the row would be immediately purgeable.
		return nil
	}
	query := `
		INSERT INTO revoked_credentials (credential_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (credential_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, credentialID, revokedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

// IsRevoked checks if the credential is in the revocation registry as of now.
func (r *PostgresRegistry) IsRevoked(ctx context.Context, credentialID string, now time.Time) (bool, error) {
	start := time.Now()
	defer func() {
		checkDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if credentialID == "" {
		return false, nil
	}
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT expires_at FROM revoked_credentials WHERE credential_id = $1`,
		credentialID,
	).Scan(&expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check credential revocation: %w", err)
	}
	if now.After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// PurgeExpired deletes rows whose credentials have passed their natural
// expiry. Returns the number of rows deleted.
func (r *PostgresRegistry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_credentials WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}
	return deleted, nil
}
