package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-ingest/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), 100)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func msg(id, from, ts, text string) *model.Message {
	return &model.Message{
		MessageID: id,
		From:      from,
		To:        "+999",
		Ts:        ts,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func seed(t *testing.T, store *SQLiteStore, messages ...*model.Message) {
	t.Helper()
	for _, m := range messages {
		outcome, err := store.Insert(context.Background(), m)
		require.NoError(t, err)
		require.Equal(t, Inserted, outcome)
	}
}

func TestInsert_NewThenDuplicate(t *testing.T) {
	store := newTestStore(t)

	outcome, err := store.Insert(context.Background(), msg("m1", "+111", "2025-01-01T10:00:00Z", "hello"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	outcome, err = store.Insert(context.Background(), msg("m1", "+111", "2025-01-01T10:00:00Z", "hello"))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, outcome)

	_, total, err := store.List(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestInsert_DuplicateKeepsOriginalRow(t *testing.T) {
	store := newTestStore(t)

	first := msg("m1", "+111", "2025-01-01T10:00:00Z", "original")
	first.CreatedAt = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	seed(t, store, first)

	replay := msg("m1", "+222", "2025-06-01T10:00:00Z", "mutated")
	replay.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	outcome, err := store.Insert(context.Background(), replay)
	require.NoError(t, err)
	require.Equal(t, Duplicate, outcome)

	rows, _, err := store.List(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "original", rows[0].Text)
	assert.Equal(t, "+111", rows[0].From)
	assert.True(t, rows[0].CreatedAt.Equal(first.CreatedAt))
}

func TestInsert_ConcurrentSameID(t *testing.T) {
	store := newTestStore(t)

	const workers = 10
	type result struct {
		outcome InsertOutcome
		err     error
	}

	var wg sync.WaitGroup
	results := make(chan result, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.Insert(context.Background(), msg("race", "+111", "2025-01-01T10:00:00Z", "x"))
			results <- result{outcome, err}
		}()
	}
	wg.Wait()
	close(results)

	var inserted, duplicate int
	for r := range results {
		require.NoError(t, r.err)
		switch r.outcome {
		case Inserted:
			inserted++
		case Duplicate:
			duplicate++
		}
	}
	assert.Equal(t, 1, inserted)
	assert.Equal(t, workers-1, duplicate)

	_, total, err := store.List(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestList_Filters(t *testing.T) {
	store := newTestStore(t)
	seed(t, store,
		msg("m1", "+111", "2025-01-01T10:00:00Z", "Oldest"),
		msg("m2", "+111", "2025-01-02T10:00:00Z", "Middle"),
		msg("m3", "+222", "2025-01-03T10:00:00Z", "Newest"),
	)

	rows, total, err := store.List(context.Background(), []Predicate{
		{Field: FieldFrom, Op: OpEq, Value: "+222"},
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "m3", rows[0].MessageID)

	rows, total, err = store.List(context.Background(), []Predicate{
		{Field: FieldTs, Op: OpGte, Value: "2025-01-02T00:00:00Z"},
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "m2", rows[0].MessageID)
	assert.Equal(t, "m3", rows[1].MessageID)

	rows, total, err = store.List(context.Background(), []Predicate{
		{Field: FieldText, Op: OpContains, Value: "ddl"},
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "m2", rows[0].MessageID)

	// Conjunction narrows to the intersection.
	rows, total, err = store.List(context.Background(), []Predicate{
		{Field: FieldFrom, Op: OpEq, Value: "+111"},
		{Field: FieldTs, Op: OpGte, Value: "2025-01-02T00:00:00Z"},
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "m2", rows[0].MessageID)
}

func TestList_UnsupportedPredicate(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.List(context.Background(), []Predicate{
		{Field: FieldFrom, Op: OpContains, Value: "+1"},
	}, 10, 0)
	assert.Error(t, err)
}

func TestList_StableOrderingOnEqualTs(t *testing.T) {
	store := newTestStore(t)
	// Insert out of id order; equal ts must fall back to message_id.
	seed(t, store,
		msg("b", "+111", "2025-01-01T10:00:00Z", "x"),
		msg("a", "+111", "2025-01-01T10:00:00Z", "x"),
		msg("c", "+111", "2025-01-01T10:00:00Z", "x"),
	)

	rows, _, err := store.List(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].MessageID)
	assert.Equal(t, "b", rows[1].MessageID)
	assert.Equal(t, "c", rows[2].MessageID)
}

func TestList_PaginationDisjointAndTotalStable(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 25; i++ {
		seed(t, store, msg(fmt.Sprintf("m%02d", i), "+111", fmt.Sprintf("2025-01-01T10:00:%02dZ", i), "x"))
	}

	seen := make(map[string]bool)
	for offset := 0; offset < 25; offset += 10 {
		rows, total, err := store.List(context.Background(), nil, 10, offset)
		require.NoError(t, err)
		assert.Equal(t, 25, total)
		for _, m := range rows {
			assert.False(t, seen[m.MessageID], "page overlap on %s", m.MessageID)
			seen[m.MessageID] = true
		}
	}
	assert.Len(t, seen, 25)
}

func TestList_ClampsOversizedLimit(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, msg("m1", "+111", "2025-01-01T10:00:00Z", "x"))

	rows, total, err := store.List(context.Background(), nil, 100000, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, rows, 1)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	seed(t, store,
		msg("m1", "+111", "2025-01-01T10:00:00Z", "x"),
		msg("m2", "+111", "2025-01-02T10:00:00Z", "x"),
		msg("m3", "+222", "2025-01-03T10:00:00Z", "x"),
		msg("m4", "+222", "2025-01-04T10:00:00Z", "x"),
		msg("m5", "+333", "2025-01-05T10:00:00Z", "x"),
	)

	stats, err := store.Stats(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalMessages)
	assert.Equal(t, 3, stats.SendersCount)
	require.NotNil(t, stats.FirstMessageTs)
	require.NotNil(t, stats.LastMessageTs)
	assert.Equal(t, "2025-01-01T10:00:00Z", *stats.FirstMessageTs)
	assert.Equal(t, "2025-01-05T10:00:00Z", *stats.LastMessageTs)

	// Count descending, ties broken by sender ascending.
	require.Len(t, stats.MessagesPerSender, 3)
	assert.Equal(t, SenderCount{From: "+111", Count: 2}, stats.MessagesPerSender[0])
	assert.Equal(t, SenderCount{From: "+222", Count: 2}, stats.MessagesPerSender[1])
	assert.Equal(t, SenderCount{From: "+333", Count: 1}, stats.MessagesPerSender[2])
}

func TestStats_TruncatesToTopN(t *testing.T) {
	store := newTestStore(t)
	seed(t, store,
		msg("m1", "+111", "2025-01-01T10:00:00Z", "x"),
		msg("m2", "+222", "2025-01-02T10:00:00Z", "x"),
		msg("m3", "+333", "2025-01-03T10:00:00Z", "x"),
	)

	stats, err := store.Stats(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, stats.MessagesPerSender, 2)
	assert.Equal(t, 3, stats.TotalMessages)
}

func TestStats_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMessages)
	assert.Equal(t, 0, stats.SendersCount)
	assert.Empty(t, stats.MessagesPerSender)
	assert.Nil(t, stats.FirstMessageTs)
	assert.Nil(t, stats.LastMessageTs)
}
