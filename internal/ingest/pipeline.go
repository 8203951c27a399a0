// internal/ingest/pipeline.go
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"webhook-ingest/internal/model"
	"webhook-ingest/internal/signature"
	"webhook-ingest/internal/storage"
)

// Outcome is the terminal classification of one webhook delivery.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeValidationError  Outcome = "validation_error"
	OutcomeStoreError       Outcome = "store_error"
)

// Recorder receives one outcome per processed delivery. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordOutcome(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string) {}

// Result is what the pipeline reports back to the transport layer.
type Result struct {
	Outcome   Outcome
	MessageID string
	// Err carries the validation detail for OutcomeValidationError and the
	// underlying failure for OutcomeStoreError; nil otherwise.
	Err error
}

// Pipeline processes inbound webhook deliveries: signature verification
// over the raw body, schema validation, then a conditional insert whose
// outcome distinguishes first-time from replayed messages. The store is
// never touched before verification passes.
type Pipeline struct {
	verifier *signature.Verifier
	store    storage.MessageStore
	recorder Recorder
	now      func() time.Time
}

func NewPipeline(verifier *signature.Verifier, store storage.MessageStore, recorder Recorder) *Pipeline {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		verifier: verifier,
		store:    store,
		recorder: recorder,
		now:      time.Now,
	}
}

// Ingest runs one delivery through the pipeline. body must be the exact
// raw request bytes the signature was computed over.
func (p *Pipeline) Ingest(ctx context.Context, body []byte, sig string) Result {
	if !p.verifier.Verify(body, sig) {
		return p.finish(Result{Outcome: OutcomeInvalidSignature})
	}

	var payload model.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return p.finish(Result{Outcome: OutcomeValidationError, Err: err})
	}
	if err := payload.Validate(); err != nil {
		return p.finish(Result{Outcome: OutcomeValidationError, MessageID: payload.MessageID, Err: err})
	}

	outcome, err := p.store.Insert(ctx, payload.ToMessage(p.now()))
	if err != nil {
		return p.finish(Result{Outcome: OutcomeStoreError, MessageID: payload.MessageID, Err: err})
	}
	if outcome == storage.Duplicate {
		return p.finish(Result{Outcome: OutcomeDuplicate, MessageID: payload.MessageID})
	}
	return p.finish(Result{Outcome: OutcomeCreated, MessageID: payload.MessageID})
}

func (p *Pipeline) finish(r Result) Result {
	p.recorder.RecordOutcome(string(r.Outcome))
	return r
}
