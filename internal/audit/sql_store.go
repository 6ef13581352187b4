package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const entryColumns = `id, entity_type, entity_id, revision, change_kind, actor, snapshot, changed_at`

// SQLStore persists revisions in audit_log for either driver.
type SQLStore struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLStore creates a store over conn.
func NewSQLStore(conn database.Connection) *SQLStore {
	return &SQLStore{conn: conn, now: time.Now}
}

// WithClock replaces the timestamp source.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

func (s *SQLStore) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

// Record appends the next revision for the entity.
func (s *SQLStore) Record(ctx context.Context, entityType string, entityID uuid.UUID, kind ChangeKind, actor string, snapshot any) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", entityType, err)
	}

	exec := s.exec(ctx)
	var revision int
	err = exec.QueryRow(ctx, `SELECT COALESCE(MAX(revision), 0) + 1 FROM audit_log WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID.String()).Scan(&revision)
	if err != nil {
		return fmt.Errorf("failed to read %s revision: %w", entityType, err)
	}

	_, err = exec.Exec(ctx, `INSERT INTO audit_log (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), entityType, entityID.String(), revision, string(kind), actor, string(body),
		database.FormatTimestamp(s.now()))
	if err != nil {
		return fmt.Errorf("failed to record %s revision: %w", entityType, err)
	}
	return nil
}

// History returns every revision of one entity, oldest first.
func (s *SQLStore) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY revision`,
		entityType, entityID.String())
}

// ByType returns the latest revisions of one entity type, newest first.
func (s *SQLStore) ByType(ctx context.Context, entityType string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `SELECT `+entryColumns+` FROM audit_log WHERE entity_type = ? ORDER BY changed_at DESC, revision DESC LIMIT ?`,
		entityType, limit)
}

// AsOf returns the latest revision recorded at or before t.
func (s *SQLStore) AsOf(ctx context.Context, entityType string, entityID uuid.UUID, t time.Time) (*Entry, error) {
	entries, err := s.query(ctx, `SELECT `+entryColumns+` FROM audit_log
		WHERE entity_type = ? AND entity_id = ? AND changed_at <= ?
		ORDER BY revision DESC LIMIT 1`,
		entityType, entityID.String(), database.FormatTimestamp(t))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoRevision
	}
	return &entries[0], nil
}

// Stats counts revisions per entity type and change kind.
func (s *SQLStore) Stats(ctx context.Context) ([]Stat, error) {
	rows, err := s.exec(ctx).Query(ctx, `SELECT entity_type, change_kind, COUNT(*) FROM audit_log
		GROUP BY entity_type, change_kind ORDER BY entity_type, change_kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit stats: %w", err)
	}
	defer rows.Close()

	var stats []Stat
	for rows.Next() {
		var st Stat
		var kind string
		if err := rows.Scan(&st.EntityType, &kind, &st.Count); err != nil {
			return nil, err
		}
		st.Kind = ChangeKind(kind)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			id        string
			kind      string
			snapshot  string
			changedAt database.Time
		)
		if err := rows.Scan(&id, &e.EntityType, &e.EntityID, &e.Revision, &kind, &e.Actor, &snapshot, &changedAt); err != nil {
			return nil, err
		}
		e.ID, _ = uuid.Parse(id)
		e.Kind = ChangeKind(kind)
		e.Snapshot = json.RawMessage(snapshot)
		e.ChangedAt = changedAt.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
