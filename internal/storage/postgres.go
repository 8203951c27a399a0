// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"webhook-ingest/internal/model"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id  TEXT PRIMARY KEY,
	from_msisdn TEXT NOT NULL,
	to_msisdn   TEXT NOT NULL,
	ts          TEXT NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages (from_msisdn);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (ts);
`

// PostgresStore implements MessageStore on PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	maxLimit int
}

func NewPostgres(ctx context.Context, dsn string, maxLimit int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &PostgresStore{db: db, maxLimit: maxLimit}, nil
}

// Insert records the message unless its id is already present. The primary
// key constraint is the synchronization point for concurrent submissions of
// the same id: the conditional insert either takes effect or reports that
// zero rows changed, in one atomic statement.
func (s *PostgresStore) Insert(ctx context.Context, m *model.Message) (InsertOutcome, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
	`, m.MessageID, m.From, m.To, m.Ts, m.Text, m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	if n == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

func (s *PostgresStore) List(ctx context.Context, preds []Predicate, limit, offset int) ([]model.Message, int, error) {
	limit, offset = clampPage(limit, offset, s.maxLimit)

	where, args, err := buildWhere(preds, func(i int) string { return fmt.Sprintf("$%d", i) })
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM messages WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT message_id, from_msisdn, to_msisdn, ts, text, created_at
		FROM messages
		WHERE %s
		ORDER BY ts ASC, message_id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, dataQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.MessageID, &m.From, &m.To, &m.Ts, &m.Text, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, total, nil
}

func (s *PostgresStore) Stats(ctx context.Context, topN int) (*Stats, error) {
	stats := &Stats{MessagesPerSender: []SenderCount{}}

	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT from_msisdn), MIN(ts), MAX(ts)
		FROM messages
	`).Scan(&stats.TotalMessages, &stats.SendersCount, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("aggregate messages: %w", err)
	}
	if first.Valid {
		stats.FirstMessageTs = &first.String
	}
	if last.Valid {
		stats.LastMessageTs = &last.String
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_msisdn, COUNT(*)
		FROM messages
		GROUP BY from_msisdn
		ORDER BY COUNT(*) DESC, from_msisdn ASC
		LIMIT $1
	`, topN)
	if err != nil {
		return nil, fmt.Errorf("aggregate senders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan sender count: %w", err)
		}
		stats.MessagesPerSender = append(stats.MessagesPerSender, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sender counts: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
