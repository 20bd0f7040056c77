package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is an immutable message body plus the addressable fields used by
// macro expansion (id, correlation id, creation timestamp).
//
// A Payload is shared read-only between the broker and every message that
// references it; construct a new Payload rather than mutating one.
type Payload struct {
	id            string
	correlationID string
	createdAt     time.Time
	body          []byte
}

// PayloadOptions carries the optional metadata a caller may supply when
// constructing a Payload. Zero values are replaced with generated ones.
type PayloadOptions struct {
	// ID uniquely identifies the logical message. Generated if empty.
	ID string

	// CorrelationID links this payload to a related message. Optional.
	CorrelationID string

	// Timestamp is the creation time. Defaults to time.Now().UTC().
	Timestamp time.Time
}

// NewPayload creates a Payload from raw bytes with generated metadata.
//
// The body is copied so later changes to the caller's slice do not leak
// into the payload.
func NewPayload(body []byte) *Payload {
	return NewPayloadWithOptions(body, PayloadOptions{})
}

// NewPayloadWithOptions creates a Payload from raw bytes with explicit
// metadata. Empty fields are generated (fresh UUID id, current UTC time).
func NewPayloadWithOptions(body []byte, opts PayloadOptions) *Payload {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Timestamp.IsZero() {
		opts.Timestamp = time.Now().UTC()
	}

	copied := make([]byte, len(body))
	copy(copied, body)

	return &Payload{
		id:            opts.ID,
		correlationID: opts.CorrelationID,
		createdAt:     opts.Timestamp,
		body:          copied,
	}
}

// NewFieldsPayload creates a Payload from a structured (map-like) body.
// The fields are serialized to JSON once, at construction time.
//
// Returns an error if the fields cannot be marshalled (e.g. a value of an
// unsupported type such as a channel or function).
func NewFieldsPayload(fields map[string]any, opts PayloadOptions) (*Payload, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload fields: %w", err)
	}
	return NewPayloadWithOptions(body, opts), nil
}

// ID returns the unique message id.
func (p *Payload) ID() string {
	return p.id
}

// CorrelationID returns the correlation id, or "" if none was supplied.
func (p *Payload) CorrelationID() string {
	return p.correlationID
}

// CreatedAt returns the payload creation timestamp.
func (p *Payload) CreatedAt() time.Time {
	return p.createdAt
}

// Serialize returns the payload body as bytes.
//
// The returned slice is a copy; callers may modify it freely.
func (p *Payload) Serialize() []byte {
	out := make([]byte, len(p.body))
	copy(out, p.body)
	return out
}

// SerializeAsString returns the payload body as text, for transports that
// deal in strings rather than bytes.
func (p *Payload) SerializeAsString() string {
	return string(p.body)
}

// Size returns the serialized body length in bytes.
func (p *Payload) Size() int {
	return len(p.body)
}
