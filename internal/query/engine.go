// internal/query/engine.go
package query

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"webhook-ingest/internal/model"
	"webhook-ingest/internal/storage"
)

const statsTopSenders = 10

// ValidationError names the rejected query parameter. Out-of-range values
// are rejected rather than clamped so the returned page always matches
// what the caller asked for.
type ValidationError struct {
	Param string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Param, e.Msg)
}

// ListParams are the validated parameters of a /messages query.
type ListParams struct {
	Limit  int
	Offset int
	From   string
	Since  string
	Q      string
}

// Page is one page of results plus the filtered total and the echoed
// pagination parameters.
type Page struct {
	Data   []model.Message `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// Engine translates caller-supplied filter parameters into store
// predicates and paginates the result.
type Engine struct {
	store        storage.MessageStore
	defaultLimit int
	maxLimit     int
}

func NewEngine(store storage.MessageStore, defaultLimit, maxLimit int) *Engine {
	return &Engine{store: store, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// ParseListParams validates raw query values. limit must be within
// [1, maxLimit] and offset non-negative; violations return a
// ValidationError naming the parameter.
func (e *Engine) ParseListParams(values url.Values) (ListParams, error) {
	p := ListParams{
		Limit:  e.defaultLimit,
		Offset: 0,
		From:   values.Get("from"),
		Since:  values.Get("since"),
		Q:      values.Get("q"),
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ValidationError{Param: "limit", Msg: "must be an integer"}
		}
		if n < 1 || n > e.maxLimit {
			return p, &ValidationError{Param: "limit", Msg: fmt.Sprintf("must be between 1 and %d", e.maxLimit)}
		}
		p.Limit = n
	}

	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ValidationError{Param: "offset", Msg: "must be an integer"}
		}
		if n < 0 {
			return p, &ValidationError{Param: "offset", Msg: "must not be negative"}
		}
		p.Offset = n
	}

	return p, nil
}

// List fetches one page of messages. Each supplied filter narrows the
// result set; the total reflects all rows matching the filter, not the
// page size.
func (e *Engine) List(ctx context.Context, p ListParams) (*Page, error) {
	var preds []storage.Predicate
	if p.From != "" {
		preds = append(preds, storage.Predicate{Field: storage.FieldFrom, Op: storage.OpEq, Value: p.From})
	}
	if p.Since != "" {
		preds = append(preds, storage.Predicate{Field: storage.FieldTs, Op: storage.OpGte, Value: p.Since})
	}
	if p.Q != "" {
		preds = append(preds, storage.Predicate{Field: storage.FieldText, Op: storage.OpContains, Value: p.Q})
	}

	messages, total, err := e.store.List(ctx, preds, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:   messages,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}, nil
}

// Stats returns the aggregate view; the per-sender list is capped at the
// configured top-sender count.
func (e *Engine) Stats(ctx context.Context) (*storage.Stats, error) {
	return e.store.Stats(ctx, statsTopSenders)
}
