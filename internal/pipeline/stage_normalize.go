package pipeline

import (
	"context"

	apperrors "payhook.dev/ledger/internal/domain/errors"
)

// NormalizeStage parses the raw payload into the provider's structured
// shape, classifies it into a NormalizedEvent, and derives the idempotency
// key the dedup stage checks.
type NormalizeStage struct{}

func NewNormalizeStage() *NormalizeStage { return &NormalizeStage{} }

func (s *NormalizeStage) Name() string { return "normalize" }

func (s *NormalizeStage) Run(ctx context.Context, claim *Context) error {
	parsed, err := claim.Adapter.ParsePayload(claim.RawBody)
	if err != nil {
		return apperrors.Parse("unable to parse payload", err)
	}
	claim.Parsed = parsed

	normalized, err := claim.Adapter.Normalize(parsed)
	if err != nil {
		return apperrors.Normalization("unable to classify event", err)
	}
	claim.Normalized = normalized
	claim.IdempotencyKey = claim.Adapter.ExtractIdempotencyKey(parsed, claim.RawBody, claim.ReceivedAt)

	claim.EventType = claim.Adapter.ExtractEventType(parsed)
	claim.References = claim.Adapter.ExtractReferences(parsed)
	claim.IsSuccess = claim.Adapter.IsSuccessEvent(claim.EventType)
	claim.IsFailure = claim.Adapter.IsFailureEvent(claim.EventType)
	claim.IsRefund = claim.Adapter.IsRefundEvent(claim.EventType)
	claim.IsDispute = claim.Adapter.IsDisputeEvent(claim.EventType)
	return nil
}
