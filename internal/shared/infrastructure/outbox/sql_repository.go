package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLRepository implements Repository on a database.Connection. Writes join
// the unit of work carried by the context.
type SQLRepository struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLRepository creates an outbox repository.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn, now: time.Now}
}

func (r *SQLRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save stores a new outbox message.
func (r *SQLRepository) Save(ctx context.Context, msg *Message) error {
	metadata := string(msg.Metadata)
	if metadata == "" {
		metadata = "{}"
	}
	err := r.exec(ctx).QueryRow(ctx, `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		metadata,
		database.FormatTimestamp(msg.CreatedAt),
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to save outbox message %s: %w", msg.EventID, err)
	}
	return nil
}

// SaveBatch stores messages one by one; atomicity comes from the caller's unit of work.
func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished returns messages that are neither published, dead nor waiting on a retry.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.exec(ctx).Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata,
		       created_at, retry_count, next_retry_at, last_error
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`,
		database.FormatTimestamp(r.now()), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                  Message
			eventID, aggregateID string
			payload, metadata    string
			createdAt, nextRetry database.Time
			lastError            *string
		)
		if err := rows.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType,
			&msg.RoutingKey, &payload, &metadata, &createdAt, &msg.RetryCount, &nextRetry, &lastError); err != nil {
			return nil, err
		}
		msg.EventID, _ = uuid.Parse(eventID)
		msg.AggregateID, _ = uuid.Parse(aggregateID)
		msg.Payload = json.RawMessage(payload)
		msg.Metadata = json.RawMessage(metadata)
		msg.CreatedAt = createdAt.Time
		msg.NextRetryAt = nextRetry.Ptr()
		msg.LastError = lastError
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.exec(ctx).Exec(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`,
		database.FormatTimestamp(r.now()), id)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.exec(ctx).Exec(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, database.FormatTimestamp(nextRetryAt), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.exec(ctx).Exec(ctx, `
		UPDATE outbox SET dead_lettered_at = ?, dead_letter_reason = ?, retry_count = retry_count + 1
		WHERE id = ?`,
		database.FormatTimestamp(r.now()), reason, id)
	return err
}

// DeleteOld removes published messages older than the retention period.
func (r *SQLRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -olderThanDays)
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		database.FormatTimestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ Repository = (*SQLRepository)(nil)
