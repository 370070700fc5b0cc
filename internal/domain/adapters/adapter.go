// Package adapters defines the Provider Adapter Port (C1): the capability
// set every payment-provider integration must implement so the pipeline can
// verify, parse, normalize, and classify an inbound webhook without knowing
// anything about the provider's wire format.
package adapters

import (
	"time"

	"payhook.dev/ledger/internal/domain/entities"
	"payhook.dev/ledger/pkg/money"
)

// NormalizedEvent is the provider-agnostic shape the pipeline operates on
// after normalization.
type NormalizedEvent struct {
	EventType         entities.NormalizedEventType
	ProviderEventID   string
	ProviderRef       string
	Money             money.Money
	ApplicationRef    string // empty if the provider payload carries none
	ProviderTimestamp time.Time
	CustomerEmail     string // empty if absent
	ProviderMetadata  map[string]interface{}
}

// References is the result of ExtractReferences: the identifiers a
// Transaction may be looked up by.
type References struct {
	ProviderRef    string
	ApplicationRef string // empty if the payload carries none
}

// Adapter is the per-provider capability set (C1). Implementations MUST be
// safe for concurrent use after construction — the registry holding them is
// immutable once the processor is built.
type Adapter interface {
	// ProviderName is the adapter's stable identifier, matching the
	// `provider` field stages key lookups and storage rows on.
	ProviderName() string

	// SupportedEvents lists the raw provider event-type strings this
	// adapter knows how to normalize.
	SupportedEvents() []string

	// VerifySignature tries each secret in order (enabling rotation) and
	// MUST be constant-time for the candidate it ultimately accepts. It
	// returns false, not an error, on a missing signature header so callers
	// can treat "unverifiable" uniformly.
	VerifySignature(rawBody []byte, headers map[string]string, secrets []string) bool

	// ParsePayload turns raw bytes into the provider's structured shape.
	// Returns an *errors.ClaimError with Kind errors.ErrParse on failure.
	ParsePayload(rawBody []byte) (interface{}, error)

	// Normalize classifies the parsed payload. Returns an *errors.ClaimError
	// with Kind errors.ErrNormalization when the event kind is unknown.
	Normalize(parsed interface{}) (NormalizedEvent, error)

	// ExtractIdempotencyKey is a deterministic function of the payload. If
	// the provider supplies no natural key, the shipped adapters fall back to
	// the hex SHA-256 of rawBody alone (crypto.SHA256Hex); provider and
	// receivedAt are not mixed into that hash.
	ExtractIdempotencyKey(parsed interface{}, rawBody []byte, receivedAt time.Time) string

	ExtractReferences(parsed interface{}) References
	ExtractEventType(parsed interface{}) string

	IsSuccessEvent(eventType string) bool
	IsFailureEvent(eventType string) bool
	IsRefundEvent(eventType string) bool
	IsDisputeEvent(eventType string) bool
}

// Registry is an immutable-after-construction lookup of Adapter by provider
// name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a Registry from a fixed set of adapters. Callers build
// it once at startup; there is no runtime re-registration.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ProviderName()] = a
	}
	return r
}

// Get looks up an adapter by provider name. ok is false when unconfigured.
func (r *Registry) Get(provider string) (Adapter, bool) {
	a, ok := r.adapters[provider]
	return a, ok
}
