// Package flutterwave implements the Flutterwave provider adapter.
//
// Flutterwave does not sign webhooks with an HMAC: the configured secret
// hash is sent back verbatim in the verif-hash header, so verification is a
// direct (constant-time) string comparison against each candidate secret,
// not a digest of the body. This is a genuine provider quirk, not an
// oversight.
package flutterwave

import (
	"encoding/json"
	"time"

	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/pkg/crypto"
	"payhook.dev/ledger/pkg/money"
)

const signatureHeader = "verif-hash"

// payload mirrors the subset of Flutterwave's webhook envelope this adapter reads.
type payload struct {
	Event string `json:"event"`
	Data  struct {
		ID         int64                  `json:"id"`
		TxRef      string                 `json:"tx_ref"`
		FlwRef     string                 `json:"flw_ref"`
		Status     string                 `json:"status"`
		Amount     float64                `json:"amount"`
		Currency   string                 `json:"currency"`
		Customer   struct {
			Email string `json:"email"`
		} `json:"customer"`
		Meta map[string]interface{} `json:"meta"`
	} `json:"data"`
}

// Adapter implements adapters.Adapter for Flutterwave.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) ProviderName() string { return "flutterwave" }

func (a *Adapter) SupportedEvents() []string {
	return []string{"charge.completed", "transfer.completed", "refund.completed"}
}

// VerifySignature compares the verif-hash header directly against each
// candidate secret — NOT a keyed HMAC of the body (see package doc).
func (a *Adapter) VerifySignature(rawBody []byte, headers map[string]string, secrets []string) bool {
	hash, ok := headers[signatureHeader]
	if !ok || hash == "" {
		return false
	}
	for _, secret := range secrets {
		if crypto.EqualHex(secret, hash) {
			return true
		}
	}
	return false
}

func (a *Adapter) ParsePayload(rawBody []byte) (interface{}, error) {
	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, apperrors.Parse("invalid flutterwave payload", err)
	}
	return &p, nil
}

func (a *Adapter) Normalize(parsed interface{}) (adapters.NormalizedEvent, error) {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unexpected parsed payload type", nil)
	}

	eventType, ok := eventTypeMap(p.Event, p.Data.Status)
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unsupported flutterwave event: "+p.Event, nil)
	}

	// Flutterwave reports amount as a decimal major-unit float; minor units
	// assume two decimal places, matching its documented currency set.
	amountMinor := int64(p.Data.Amount*100 + 0.5)
	m, err := money.New(amountMinor, p.Data.Currency)
	if err != nil {
		return adapters.NormalizedEvent{}, apperrors.Normalization("invalid money fields", err)
	}

	metadata := p.Data.Meta
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return adapters.NormalizedEvent{
		EventType:        eventType,
		ProviderEventID:  a.ExtractIdempotencyKey(p, nil, time.Time{}),
		ProviderRef:      p.Data.FlwRef,
		ApplicationRef:   p.Data.TxRef,
		Money:            m,
		CustomerEmail:    p.Data.Customer.Email,
		ProviderMetadata: metadata,
	}, nil
}

func eventTypeMap(event, status string) (entities.NormalizedEventType, bool) {
	switch event {
	case "charge.completed":
		switch status {
		case "successful":
			return entities.EventPaymentSuccessful, true
		case "failed":
			return entities.EventPaymentFailed, true
		default:
			return "", false
		}
	case "refund.completed":
		return entities.EventRefundSuccessful, true
	default:
		return "", false
	}
}

func (a *Adapter) ExtractIdempotencyKey(parsed interface{}, rawBody []byte, receivedAt time.Time) string {
	p, ok := parsed.(*payload)
	if !ok || p.Data.ID == 0 {
		return crypto.SHA256Hex(rawBody)
	}
	return p.Data.FlwRef
}

func (a *Adapter) ExtractReferences(parsed interface{}) adapters.References {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.References{}
	}
	return adapters.References{ProviderRef: p.Data.FlwRef, ApplicationRef: p.Data.TxRef}
}

func (a *Adapter) ExtractEventType(parsed interface{}) string {
	p, ok := parsed.(*payload)
	if !ok {
		return ""
	}
	return p.Event
}

func (a *Adapter) IsSuccessEvent(eventType string) bool { return eventType == "charge.completed" }
func (a *Adapter) IsFailureEvent(eventType string) bool { return eventType == "charge.completed" }
func (a *Adapter) IsRefundEvent(eventType string) bool  { return eventType == "refund.completed" }
func (a *Adapter) IsDisputeEvent(eventType string) bool { return false }
