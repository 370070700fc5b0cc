// Package stripe implements the Stripe provider adapter.
package stripe

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/pkg/crypto"
	"payhook.dev/ledger/pkg/money"
)

const signatureHeader = "stripe-signature"

// defaultTolerance mirrors Stripe's own webhook library default: a signed
// timestamp older than this (relative to verification time) is rejected even
// if the HMAC matches, to bound replay of a captured payload.
const defaultTolerance = 5 * time.Minute

// payload mirrors the subset of Stripe's event envelope this adapter reads.
type payload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID           string                 `json:"id"`
			Amount         int64                  `json:"amount"`
			AmountRefunded int64                  `json:"amount_refunded"`
			Currency       string                 `json:"currency"`
			Status         string                 `json:"status"`
			ReceiptEmail   string                 `json:"receipt_email"`
			Metadata       map[string]interface{} `json:"metadata"`
			PaymentIntent  string                 `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// Adapter implements adapters.Adapter for Stripe.
type Adapter struct {
	tolerance time.Duration
	now       func() time.Time
}

func New() *Adapter {
	return &Adapter{tolerance: defaultTolerance, now: time.Now}
}

// NewWithTolerance builds an Adapter with a non-default signature freshness
// window; used by deployments with looser clock skew tolerance than Stripe's
// own default, and by tests.
func NewWithTolerance(tolerance time.Duration) *Adapter {
	return &Adapter{tolerance: tolerance, now: time.Now}
}

func (a *Adapter) ProviderName() string { return "stripe" }

func (a *Adapter) SupportedEvents() []string {
	return []string{
		"payment_intent.succeeded", "payment_intent.payment_failed",
		"charge.refunded", "charge.refund.updated",
		"charge.dispute.created", "charge.dispute.closed",
	}
}

// VerifySignature implements Stripe's t=<timestamp>,v1=<hmac> scheme: the
// signed payload is "<timestamp>.<rawBody>", HMAC-SHA256 hex-encoded.
func (a *Adapter) VerifySignature(rawBody []byte, headers map[string]string, secrets []string) bool {
	header, ok := headers[signatureHeader]
	if !ok || header == "" {
		return false
	}

	var timestamp, v1 string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if timestamp == "" || v1 == "" {
		return false
	}

	if a.tolerance > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		age := a.nowFunc().Sub(time.Unix(ts, 0))
		if age < 0 {
			age = -age
		}
		if age > a.tolerance {
			return false
		}
	}

	signedPayload := []byte(timestamp + "." + string(rawBody))
	return crypto.VerifyAnySecret(secrets, signedPayload, v1, func(secret, data []byte) string {
		return crypto.HMACSHA256Hex(secret, data)
	})
}

func (a *Adapter) nowFunc() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *Adapter) ParsePayload(rawBody []byte) (interface{}, error) {
	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, apperrors.Parse("invalid stripe payload", err)
	}
	return &p, nil
}

var eventTypeMap = map[string]entities.NormalizedEventType{
	"payment_intent.succeeded":      entities.EventPaymentSuccessful,
	"payment_intent.payment_failed": entities.EventPaymentFailed,
	"charge.refunded":               entities.EventRefundSuccessful,
	"charge.refund.updated":         entities.EventRefundPending,
	"charge.dispute.created":        entities.EventChargeDisputed,
	"charge.dispute.closed":         entities.EventDisputeResolved,
}

func (a *Adapter) Normalize(parsed interface{}) (adapters.NormalizedEvent, error) {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unexpected parsed payload type", nil)
	}

	eventType, ok := eventTypeMap[p.Type]
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unsupported stripe event: "+p.Type, nil)
	}

	m, err := money.New(p.Data.Object.Amount, strings.ToUpper(p.Data.Object.Currency))
	if err != nil {
		return adapters.NormalizedEvent{}, apperrors.Normalization("invalid money fields", err)
	}

	metadata := p.Data.Object.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if eventType == entities.EventDisputeResolved {
		if outcome, ok := metadata["dispute_outcome"].(string); ok {
			metadata["disputeOutcome"] = normalizeOutcome(outcome)
		}
	}
	if eventType == entities.EventRefundSuccessful {
		metadata["partialRefund"] = p.Data.Object.AmountRefunded > 0 && p.Data.Object.AmountRefunded < p.Data.Object.Amount
	}

	return adapters.NormalizedEvent{
		EventType:         eventType,
		ProviderEventID:   p.ID,
		ProviderRef:       providerRef(p),
		Money:             m,
		ProviderTimestamp: time.Unix(p.Created, 0).UTC(),
		CustomerEmail:     p.Data.Object.ReceiptEmail,
		ProviderMetadata:  metadata,
	}, nil
}

func providerRef(p *payload) string {
	if p.Data.Object.PaymentIntent != "" {
		return p.Data.Object.PaymentIntent
	}
	return p.Data.Object.ID
}

func normalizeOutcome(raw string) string {
	switch raw {
	case "won":
		return "won"
	case "lost":
		return "lost"
	default:
		return ""
	}
}

func (a *Adapter) ExtractIdempotencyKey(parsed interface{}, rawBody []byte, receivedAt time.Time) string {
	p, ok := parsed.(*payload)
	if !ok || p.ID == "" {
		return crypto.SHA256Hex(rawBody)
	}
	return p.ID
}

func (a *Adapter) ExtractReferences(parsed interface{}) adapters.References {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.References{}
	}
	return adapters.References{ProviderRef: providerRef(p)}
}

func (a *Adapter) ExtractEventType(parsed interface{}) string {
	p, ok := parsed.(*payload)
	if !ok {
		return ""
	}
	return p.Type
}

func (a *Adapter) IsSuccessEvent(eventType string) bool {
	return eventType == "payment_intent.succeeded"
}
func (a *Adapter) IsFailureEvent(eventType string) bool {
	return eventType == "payment_intent.payment_failed"
}
func (a *Adapter) IsRefundEvent(eventType string) bool {
	return eventType == "charge.refunded" || eventType == "charge.refund.updated"
}
func (a *Adapter) IsDisputeEvent(eventType string) bool {
	return eventType == "charge.dispute.created" || eventType == "charge.dispute.closed"
}
