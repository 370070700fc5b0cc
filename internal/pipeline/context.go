// Package pipeline implements the webhook claim pipeline: a fixed sequence
// of stages that turn a raw inbound request into a recorded Transaction
// state change, or a classified rejection fate.
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
)

// Context carries one webhook claim through the stage sequence. Stages read
// and mutate it in place; none of it is safe to share across concurrent
// claims (one Context per request).
type Context struct {
	Provider       string
	RawBody        []byte
	Headers        map[string]string
	ReceivedAt     time.Time
	ProcessingID   uuid.UUID // correlates this claim's log rows and metrics

	Adapter Adapter

	Parsed          interface{}
	Normalized      adapters.NormalizedEvent
	IdempotencyKey  string
	SignatureValid  bool
	// SkipSignatureVerification bypasses S1 entirely. Set only by the
	// replay debug CLI (cmd/replaydebug) re-driving an already-received,
	// already-authenticated WebhookLog through the pipeline.
	SkipSignatureVerification bool

	// EventType, References, and the classifier booleans are the adapter's
	// raw-event-shape view of the claim, extracted alongside Normalize so
	// downstream tooling (dispatch, replay, debugging) can branch on them
	// without re-parsing the payload.
	EventType    string
	References   adapters.References
	IsSuccess    bool
	IsFailure    bool
	IsRefund     bool
	IsDispute    bool

	WebhookLogID     *uuid.UUID
	TransactionID    *uuid.UUID
	TransactionStatus entities.TransactionStatus // set when persist-claim links an existing Transaction

	Fate         entities.ProcessingStatus
	ErrorMessage string

	// StageDurations records how long each stage took, keyed by stage Name().
	StageDurations map[string]time.Duration
}

// Adapter narrows adapters.Adapter to what stages need, letting tests supply
// stubs without pulling in a real provider package.
type Adapter = adapters.Adapter

// NewContext builds the Context a fresh HTTP request claim starts with.
func NewContext(provider string, rawBody []byte, headers map[string]string, receivedAt time.Time) *Context {
	return &Context{
		Provider:       provider,
		RawBody:        rawBody,
		Headers:        headers,
		ReceivedAt:     receivedAt,
		ProcessingID:   uuid.New(),
		StageDurations: make(map[string]time.Duration),
	}
}
