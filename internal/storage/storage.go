// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"strings"

	"webhook-ingest/internal/model"
)

// InsertOutcome classifies the result of a conditional insert.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

// Field names a filterable message column.
type Field string

const (
	FieldFrom Field = "from"
	FieldTs   Field = "ts"
	FieldText Field = "text"
)

// Op is a filter operator.
type Op string

const (
	OpEq       Op = "eq"
	OpGte      Op = "gte"
	OpContains Op = "contains"
)

// Predicate is one typed filter condition. Predicates are combined with
// logical AND; the storage layer translates them into its query form so
// callers never build SQL.
type Predicate struct {
	Field Field
	Op    Op
	Value string
}

// SenderCount is one row of the per-sender aggregate.
type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// Stats is the aggregate view over the whole store.
type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTs    *string       `json:"first_message_ts"`
	LastMessageTs     *string       `json:"last_message_ts"`
}

// MessageStore is the durable keyed collection of messages. Both the
// Postgres and SQLite backends implement this interface.
type MessageStore interface {
	// Insert records m if no message with the same message_id exists.
	// The duplicate/new race is decided atomically by the storage
	// engine's uniqueness constraint; exactly one concurrent caller for
	// a given id observes Inserted. Infrastructure failures surface as a
	// non-nil error, never as Duplicate.
	Insert(ctx context.Context, m *model.Message) (InsertOutcome, error)

	// List returns the page of messages matching all predicates, ordered
	// by ts ascending with message_id as tie-break, plus the total count
	// matching the predicates independent of limit/offset.
	List(ctx context.Context, preds []Predicate, limit, offset int) ([]model.Message, int, error)

	// Stats aggregates over the full store; per-sender counts are ordered
	// count descending, sender ascending, truncated to topN.
	Stats(ctx context.Context, topN int) (*Stats, error)

	Ping(ctx context.Context) error
	Close() error
}

// buildWhere translates predicates into a SQL WHERE body. placeholder
// renders the i-th (1-based) bind parameter for the backend's dialect.
// Fields and operators are whitelisted here; anything else is an error.
func buildWhere(preds []Predicate, placeholder func(i int) string) (string, []any, error) {
	var clauses []string
	var args []any

	for _, p := range preds {
		ph := placeholder(len(args) + 1)
		switch {
		case p.Field == FieldFrom && p.Op == OpEq:
			clauses = append(clauses, "from_msisdn = "+ph)
			args = append(args, p.Value)
		case p.Field == FieldTs && p.Op == OpGte:
			clauses = append(clauses, "ts >= "+ph)
			args = append(args, p.Value)
		case p.Field == FieldText && p.Op == OpContains:
			clauses = append(clauses, "text LIKE "+ph)
			args = append(args, "%"+p.Value+"%")
		default:
			return "", nil, fmt.Errorf("unsupported predicate %s %s", p.Field, p.Op)
		}
	}

	if len(clauses) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}

// clampPage bounds limit and offset defensively. The query layer rejects
// out-of-range values before they get here; this keeps a misbehaving
// caller from requesting unbounded result sets.
func clampPage(limit, offset, maxLimit int) (int, int) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
