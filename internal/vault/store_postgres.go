package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	"hushmcp/pkg/platform/sentinel"
)

// recordEncoding names the wire encoding of the binary columns. The schema
// carries it per row so the layout can change without rewriting history.
const recordEncoding = "base64"

// PostgresStore is the production persistence layer. It implements both
// Store and consent.Records: one store owns the vault_records and
// consent_records tables so the right-to-be-forgotten purge can hard-delete
// across them in a single transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over an open pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Put(ctx context.Context, record StoredRecord) error {
	res, err := s.pool.Exec(ctx, `
		INSERT INTO vault_records
			(record_id, user_id, category, agent_id, scope, algorithm,
			 ciphertext, iv, tag, encoding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (record_id) DO NOTHING
	`, record.ID.String(), record.UserID.String(), record.Category,
		record.Record.Metadata.AgentID.String(), record.Record.Metadata.Scope.String(),
		record.Record.Algorithm.String(),
		encodeColumn(record.Record.Ciphertext), encodeColumn(record.Record.Nonce),
		encodeColumn(record.Record.Tag), recordEncoding, record.Record.Metadata.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vault record: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("vault record %s already exists: %w", record.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, category string, recordID RecordID) (StoredRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record_id, user_id, category, agent_id, scope, algorithm,
		       ciphertext, iv, tag, encoding, created_at
		FROM vault_records
		WHERE record_id = $1 AND user_id = $2 AND category = $3
	`, recordID.String(), userID.String(), category)
	record, err := scanStoredRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredRecord{}, fmt.Errorf("vault record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return StoredRecord{}, fmt.Errorf("get vault record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Categories(ctx context.Context, userID id.UserID) ([]CategoryCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM vault_records
		WHERE user_id = $1
		GROUP BY category
		ORDER BY category
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list vault categories: %w", err)
	}
	defer rows.Close()

	var categories []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan vault category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vault categories: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) RecordsForUser(ctx context.Context, userID id.UserID) ([]StoredRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record_id, user_id, category, agent_id, scope, algorithm,
		       ciphertext, iv, tag, encoding, created_at
		FROM vault_records
		WHERE user_id = $1
		ORDER BY created_at, record_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list vault records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		record, err := scanStoredRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vault records: %w", err)
	}
	return records, nil
}

// DeleteUserData hard-deletes the user's vault rows and consent records in
// one transaction and reports how many rows each table lost.
func (s *PostgresStore) DeleteUserData(ctx context.Context, userID id.UserID) (DeleteCounts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DeleteCounts{}, fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback(ctx)

	var counts DeleteCounts
	res, err := tx.Exec(ctx, `DELETE FROM vault_records WHERE user_id = $1`, userID.String())
	if err != nil {
		return DeleteCounts{}, fmt.Errorf("delete vault records: %w", err)
	}
	counts.VaultRecords = int(res.RowsAffected())

	res, err = tx.Exec(ctx, `DELETE FROM consent_records WHERE user_id = $1`, userID.String())
	if err != nil {
		return DeleteCounts{}, fmt.Errorf("delete consent records: %w", err)
	}
	counts.ConsentRecords = int(res.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return DeleteCounts{}, fmt.Errorf("commit purge: %w", err)
	}
	return counts, nil
}

// ============================================================================
// consent.Records
// ============================================================================

func (s *PostgresStore) RecordConsent(ctx context.Context, record consent.ConsentRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consent_records
			(token_hash, token_id, user_id, agent_id, scope,
			 issued_at, expires_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $6, $6)
		ON CONFLICT (token_hash) DO NOTHING
	`, record.TokenHash, record.TokenID.String(), record.UserID.String(),
		record.AgentID.String(), record.Scope.String(),
		record.IssuedAt, record.ExpiresAt, string(record.Status))
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveConsents(ctx context.Context, userID id.UserID, now time.Time) ([]consent.ConsentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_hash, token_id, user_id, agent_id, scope, issued_at, expires_at, status
		FROM consent_records
		WHERE user_id = $1 AND status = $2 AND expires_at >= $3
		ORDER BY issued_at DESC
	`, userID.String(), string(consent.ConsentStatusActive), now)
	if err != nil {
		return nil, fmt.Errorf("list active consents: %w", err)
	}
	defer rows.Close()

	var records []consent.ConsentRecord
	for rows.Next() {
		record, err := scanConsentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active consents: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) MarkConsentRevoked(ctx context.Context, tokenHash string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE consent_records SET status = $1, updated_at = NOW()
		WHERE token_hash = $2
	`, string(consent.ConsentStatusRevoked), tokenHash)
	if err != nil {
		return fmt.Errorf("mark consent revoked: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("consent record not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ConsentByTokenID(ctx context.Context, tokenID id.TokenID) (*consent.ConsentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT token_hash, token_id, user_id, agent_id, scope, issued_at, expires_at, status
		FROM consent_records
		WHERE token_id = $1
	`, tokenID.String())
	return consentRow(row)
}

func (s *PostgresStore) ConsentByHash(ctx context.Context, tokenHash string) (*consent.ConsentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT token_hash, token_id, user_id, agent_id, scope, issued_at, expires_at, status
		FROM consent_records
		WHERE token_hash = $1
	`, tokenHash)
	return consentRow(row)
}

func consentRow(row pgx.Row) (*consent.ConsentRecord, error) {
	record, err := scanConsentRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consent record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get consent record: %w", err)
	}
	return &record, nil
}

func scanConsentRecord(row interface{ Scan(dest ...any) error }) (consent.ConsentRecord, error) {
	var record consent.ConsentRecord
	var tokenID, userID, agentID, scope, status string
	err := row.Scan(&record.TokenHash, &tokenID, &userID, &agentID, &scope,
		&record.IssuedAt, &record.ExpiresAt, &status)
	if err != nil {
		return consent.ConsentRecord{}, err
	}
	record.TokenID = id.TokenID(tokenID)
	record.UserID = id.UserID(userID)
	record.AgentID = id.AgentID(agentID)
	record.Scope = id.ConsentScope(scope)
	record.Status = consent.ConsentStatus(status)
	return record, nil
}

func scanStoredRecord(row interface{ Scan(dest ...any) error }) (StoredRecord, error) {
	var stored StoredRecord
	var recordID, userID, agentID, scope, algorithm string
	var ciphertext, iv, tag, encoding string
	err := row.Scan(&recordID, &userID, &stored.Category, &agentID, &scope,
		&algorithm, &ciphertext, &iv, &tag, &encoding, &stored.Record.Metadata.CreatedAt)
	if err != nil {
		return StoredRecord{}, err
	}
	if encoding != recordEncoding {
		return StoredRecord{}, fmt.Errorf("unsupported record encoding %q", encoding)
	}
	stored.ID = RecordID(recordID)
	stored.UserID = id.UserID(userID)
	stored.Record.Algorithm = Algorithm(algorithm)
	stored.Record.Metadata.AgentID = id.AgentID(agentID)
	stored.Record.Metadata.Scope = id.ConsentScope(scope)
	if stored.Record.Ciphertext, err = decodeColumn(ciphertext); err != nil {
		return StoredRecord{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	if stored.Record.Nonce, err = decodeColumn(iv); err != nil {
		return StoredRecord{}, fmt.Errorf("decode iv: %w", err)
	}
	if stored.Record.Tag, err = decodeColumn(tag); err != nil {
		return StoredRecord{}, fmt.Errorf("decode tag: %w", err)
	}
	return stored, nil
}

func encodeColumn(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeColumn(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
