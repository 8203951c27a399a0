// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"webhook-ingest/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id  TEXT PRIMARY KEY,
	from_msisdn TEXT NOT NULL,
	to_msisdn   TEXT NOT NULL,
	ts          TEXT NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages (from_msisdn);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (ts);
`

// SQLiteStore implements MessageStore on SQLite.
type SQLiteStore struct {
	db       *sql.DB
	maxLimit int
}

func NewSQLite(ctx context.Context, dbPath string, maxLimit int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLiteStore{db: db, maxLimit: maxLimit}, nil
}

// Insert relies on the primary key to arbitrate concurrent submissions of
// the same message_id: INSERT OR IGNORE either writes the row or changes
// nothing, atomically.
func (s *SQLiteStore) Insert(ctx context.Context, m *model.Message) (InsertOutcome, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
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

func (s *SQLiteStore) List(ctx context.Context, preds []Predicate, limit, offset int) ([]model.Message, int, error) {
	limit, offset = clampPage(limit, offset, s.maxLimit)

	where, args, err := buildWhere(preds, func(int) string { return "?" })
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM messages WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	dataQuery := `
		SELECT message_id, from_msisdn, to_msisdn, ts, text, created_at
		FROM messages
		WHERE ` + where + `
		ORDER BY ts ASC, message_id ASC
		LIMIT ? OFFSET ?
	`

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

func (s *SQLiteStore) Stats(ctx context.Context, topN int) (*Stats, error) {
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
		LIMIT ?
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

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
