// internal/model/message.go
package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// MaxTextLength bounds the free-text payload of a message.
const MaxTextLength = 4096

var (
	msisdnRe    = regexp.MustCompile(`^\+\d+$`)
	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
)

// Message is the stored unit of record. MessageID is supplied by the sender
// and acts as the idempotency key; CreatedAt is assigned by the server at
// the first successful insert and never changes afterwards.
type Message struct {
	MessageID string    `json:"message_id" db:"message_id"`
	From      string    `json:"from" db:"from_msisdn"`
	To        string    `json:"to" db:"to_msisdn"`
	Ts        string    `json:"ts" db:"ts"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// WebhookPayload is the inbound webhook body schema.
type WebhookPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Ts        string `json:"ts"`
	Text      string `json:"text"`
}

// Validate checks the payload against the webhook schema: non-empty
// message_id, msisdn-formatted from/to, UTC second-precision timestamp,
// and bounded text length.
func (p *WebhookPayload) Validate() error {
	if p.MessageID == "" {
		return errors.New("message_id is required")
	}
	if !msisdnRe.MatchString(p.From) {
		return errors.New("from must be a msisdn like +14155550100")
	}
	if !msisdnRe.MatchString(p.To) {
		return errors.New("to must be a msisdn like +14155550100")
	}
	if !timestampRe.MatchString(p.Ts) {
		return errors.New("ts must be formatted like 2025-01-15T10:00:00Z")
	}
	if len(p.Text) > MaxTextLength {
		return fmt.Errorf("text exceeds %d characters", MaxTextLength)
	}
	return nil
}

// ToMessage builds the stored record, stamping the server-side receive time.
func (p *WebhookPayload) ToMessage(receivedAt time.Time) *Message {
	return &Message{
		MessageID: p.MessageID,
		From:      p.From,
		To:        p.To,
		Ts:        p.Ts,
		Text:      p.Text,
		CreatedAt: receivedAt.UTC(),
	}
}
