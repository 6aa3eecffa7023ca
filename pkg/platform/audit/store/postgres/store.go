// Package postgres persists audit events using the transactional outbox
// pattern. Every event lands in the audit_events table; rows with a NULL
// published_at are claimed in batches by the Kafka relay and marked once
// produced. With no Kafka configured the table is simply the audit log.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	audit "hushmcp/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event. Idempotent on event id so redelivery from
// the worker is harmless. The category column is derived from the event name;
// the eventCategories map stays the source of truth.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := marshalDetail(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}

	query := `
		INSERT INTO audit_events (event_id, category, name, actor, subject, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Name.Category()),
		string(event.Name),
		event.Actor,
		event.Subject,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ClaimUnpublished locks and returns the oldest unpublished events, bumping
// their attempt counter in the same statement. SKIP LOCKED keeps concurrent
// relay instances from claiming the same rows; rows stay claimable until
// MarkPublished, so a crashed relay only causes redelivery.
func (s *Store) ClaimUnpublished(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		UPDATE audit_events
		SET attempts = attempts + 1
		WHERE event_id IN (
			SELECT event_id FROM audit_events
			WHERE published_at IS NULL
			ORDER BY occurred_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING event_id, name, actor, subject, payload, occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			name    string
			payload []byte
		)
		if err := rows.Scan(&event.ID, &name, &event.Actor, &event.Subject, &payload, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		event.Name = audit.EventName(name)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return events, nil
}

// MarkPublished stamps the given events as delivered. Batched with unnest for
// one round trip regardless of batch size.
func (s *Store) MarkPublished(ctx context.Context, eventIDs []string, publishedAt time.Time) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query := `
		UPDATE audit_events
		SET published_at = $2
		WHERE event_id IN (SELECT unnest($1::text[]))
	`
	_, err := s.db.ExecContext(ctx, query, pq.Array(eventIDs), publishedAt)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func marshalDetail(detail map[string]string) ([]byte, error) {
	if len(detail) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(detail)
}
