// Package relay forwards persisted audit events from the Postgres outbox to
// Kafka. Delivery is at-least-once: a batch that fails mid-produce stays
// unpublished and is claimed again on the next tick, and consumers dedupe on
// the event id.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/circuit"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Outbox is the claim side of the audit outbox.
type Outbox interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]audit.Event, error)
	MarkPublished(ctx context.Context, eventIDs []string, publishedAt time.Time) error
}

type Relay struct {
	outbox   Outbox
	client   *kgo.Client
	topic    string
	interval time.Duration
	batch    int
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func New(outbox Outbox, brokers []string, topic string, logger *slog.Logger) (*Relay, error) {
	if len(brokers) == 0 {
		return nil, errors.New("audit relay requires at least one broker")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("hushmcp-audit-relay"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Relay{
		outbox:   outbox,
		client:   client,
		topic:    topic,
		interval: defaultInterval,
		batch:    defaultBatchSize,
		breaker:  circuit.New("kafka-audit"),
		logger:   logger,
	}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet. Single
// partition is enough for an audit stream; operators can repartition later.
func (r *Relay) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic %s: %w", r.topic, resp.Err)
	}
	return nil
}

// Run flushes the outbox on an interval until ctx is cancelled. A failed
// flush is logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.WarnContext(ctx, "audit relay flush failed", "error", err)
			}
		}
	}
}

// Flush claims one batch of unpublished events, produces them, and marks them
// published. Records are keyed by subject so a user's trail stays ordered
// within the partition. While the breaker is open, Flush claims single-event
// probe batches instead of full ones; unproduced events stay in the outbox, so
// an outage costs latency rather than records.
func (r *Relay) Flush(ctx context.Context) error {
	limit := r.batch
	if r.breaker.IsOpen() {
		limit = 1
	}

	events, err := r.outbox.ClaimUnpublished(ctx, limit)
	if err != nil {
		return fmt.Errorf("claim outbox batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(relayPayload{
			ID:         event.ID,
			Name:       string(event.Name),
			Category:   string(event.Name.Category()),
			Actor:      event.Actor,
			Subject:    event.Subject,
			Detail:     event.Detail,
			OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		records = append(records, &kgo.Record{Key: recordKey(event), Value: value})
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "audit relay circuit opened, degrading to probe batches", "breaker", r.breaker.Name())
		}
		return fmt.Errorf("produce audit batch: %w", err)
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "audit relay circuit closed, resuming full batches", "breaker", r.breaker.Name())
	}

	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (r *Relay) Close() {
	r.client.Close()
}

// relayPayload is the JSON structure produced to the audit topic.
type relayPayload struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Actor      string            `json:"actor,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt string            `json:"occurred_at"`
}

func recordKey(event audit.Event) []byte {
	if event.Subject != "" {
		return []byte(event.Subject)
	}
	return []byte(event.ID)
}
