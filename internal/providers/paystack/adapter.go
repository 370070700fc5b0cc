// Package paystack implements the Paystack provider adapter.
package paystack

import (
	"encoding/json"
	"strconv"
	"time"

	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/pkg/crypto"
	"payhook.dev/ledger/pkg/money"
)

const signatureHeader = "x-paystack-signature"

// payload mirrors the subset of Paystack's webhook envelope this adapter reads.
type payload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"` // Paystack sends amount already in kobo/minor units
		Currency  string `json:"currency"`
		Metadata  map[string]interface{} `json:"metadata"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		PaidAt     string `json:"paid_at"`
		Resolution string `json:"resolution"` // present only on charge.dispute.resolve
		Transaction struct {
			Amount int64 `json:"amount"` // original charge amount, present on refund.* events
		} `json:"transaction"`
	} `json:"data"`
}

var disputeOutcomeMap = map[string]string{
	"merchant-accepted": "lost",
	"declined":          "won",
}

// Adapter implements adapters.Adapter for Paystack.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) ProviderName() string { return "paystack" }

func (a *Adapter) SupportedEvents() []string {
	return []string{"charge.success", "charge.failed", "refund.processed", "refund.failed", "refund.pending", "charge.dispute.create", "charge.dispute.resolve"}
}

// VerifySignature checks the hex-encoded HMAC-SHA512 of the raw body against
// x-paystack-signature, trying each secret to support rotation.
func (a *Adapter) VerifySignature(rawBody []byte, headers map[string]string, secrets []string) bool {
	sig, ok := headers[signatureHeader]
	if !ok || sig == "" {
		return false
	}
	return crypto.VerifyAnySecret(secrets, rawBody, sig, func(secret, data []byte) string {
		return crypto.HMACSHA512Hex(secret, data)
	})
}

func (a *Adapter) ParsePayload(rawBody []byte) (interface{}, error) {
	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, apperrors.Parse("invalid paystack payload", err)
	}
	return &p, nil
}

func (a *Adapter) Normalize(parsed interface{}) (adapters.NormalizedEvent, error) {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unexpected parsed payload type", nil)
	}

	eventType, ok := eventTypeMap[p.Event]
	if !ok {
		return adapters.NormalizedEvent{}, apperrors.Normalization("unsupported paystack event: "+p.Event, nil)
	}

	m, err := money.New(p.Data.Amount, p.Data.Currency)
	if err != nil {
		return adapters.NormalizedEvent{}, apperrors.Normalization("invalid money fields", err)
	}

	var providerTimestamp time.Time
	if p.Data.PaidAt != "" {
		providerTimestamp, _ = time.Parse(time.RFC3339, p.Data.PaidAt)
	}

	metadata := p.Data.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if outcome, ok := disputeOutcomeMap[p.Data.Resolution]; ok {
		metadata["disputeOutcome"] = outcome
	}
	if eventType == entities.EventRefundSuccessful && p.Data.Transaction.Amount > 0 {
		metadata["partialRefund"] = p.Data.Amount < p.Data.Transaction.Amount
	}

	return adapters.NormalizedEvent{
		EventType:         eventType,
		ProviderEventID:   a.ExtractIdempotencyKey(p, nil, time.Time{}),
		ProviderRef:       p.Data.Reference,
		Money:             m,
		ProviderTimestamp: providerTimestamp,
		CustomerEmail:     p.Data.Customer.Email,
		ProviderMetadata:  metadata,
	}, nil
}

var eventTypeMap = map[string]entities.NormalizedEventType{
	"charge.success":         entities.EventPaymentSuccessful,
	"charge.failed":          entities.EventPaymentFailed,
	"refund.processed":       entities.EventRefundSuccessful,
	"refund.failed":          entities.EventRefundFailed,
	"refund.pending":         entities.EventRefundPending,
	"charge.dispute.create":  entities.EventChargeDisputed,
	"charge.dispute.resolve": entities.EventDisputeResolved,
}

func (a *Adapter) ExtractIdempotencyKey(parsed interface{}, rawBody []byte, receivedAt time.Time) string {
	p, ok := parsed.(*payload)
	if !ok || p.Data.ID == 0 {
		return crypto.SHA256Hex(rawBody)
	}
	return p.Event + ":" + strconv.FormatInt(p.Data.ID, 10)
}

func (a *Adapter) ExtractReferences(parsed interface{}) adapters.References {
	p, ok := parsed.(*payload)
	if !ok {
		return adapters.References{}
	}
	return adapters.References{ProviderRef: p.Data.Reference}
}

func (a *Adapter) ExtractEventType(parsed interface{}) string {
	p, ok := parsed.(*payload)
	if !ok {
		return ""
	}
	return p.Event
}

func (a *Adapter) IsSuccessEvent(eventType string) bool { return eventType == "charge.success" }
func (a *Adapter) IsFailureEvent(eventType string) bool { return eventType == "charge.failed" }
func (a *Adapter) IsRefundEvent(eventType string) bool {
	switch eventType {
	case "refund.processed", "refund.failed", "refund.pending":
		return true
	default:
		return false
	}
}
func (a *Adapter) IsDisputeEvent(eventType string) bool {
	return eventType == "charge.dispute.create" || eventType == "charge.dispute.resolve"
}
