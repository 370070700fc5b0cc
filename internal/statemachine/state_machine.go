// Package statemachine implements the pure transaction state machine (C3).
// It performs no I/O: given a current status and a proposed target, it
// decides whether the transition is allowed.
package statemachine

import "payhook.dev/ledger/internal/domain/entities"

// Decision is the result of validating a proposed transition.
type Decision struct {
	Allowed bool
	// Reason explains a rejection; empty when Allowed is true.
	Reason string
}

func allow() Decision { return Decision{Allowed: true} }

func reject(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// edges maps an origin status to the set of statuses it may transition into.
// Exactly the table in spec.md §4.3; any edge not listed here is rejected.
var edges = map[entities.TransactionStatus]map[entities.TransactionStatus]bool{
	entities.StatusPending: {
		entities.StatusProcessing: true,
		entities.StatusAbandoned:  true,
		entities.StatusFailed:     true,
	},
	entities.StatusProcessing: {
		entities.StatusSuccessful: true,
		entities.StatusFailed:     true,
		entities.StatusAbandoned:  true,
	},
	entities.StatusSuccessful: {
		entities.StatusRefunded:          true,
		entities.StatusPartiallyRefunded: true,
		entities.StatusDisputed:          true,
	},
	entities.StatusPartiallyRefunded: {
		entities.StatusRefunded: true,
		entities.StatusDisputed: true,
	},
	entities.StatusDisputed: {
		entities.StatusResolvedWon:  true,
		entities.StatusResolvedLost: true,
		entities.StatusSuccessful:   true, // dispute cancelled
	},
}

// ValidateTransition decides whether from -> to is allowed. A transition from
// a status to itself is always allowed (idempotent re-delivery / "no change"
// events map target back onto the current status); every other edge must
// appear in the table above.
func ValidateTransition(from, to entities.TransactionStatus) Decision {
	if from == to {
		return allow()
	}
	if from.Terminal() {
		return reject("transaction is in a terminal status")
	}
	targets, ok := edges[from]
	if !ok {
		return reject("no transitions are defined from this status")
	}
	if !targets[to] {
		return reject("transition is not permitted by the state machine")
	}
	return allow()
}

// EventMapping is the input to MapEventToStatus: everything the event ->
// target-status table (spec.md §4.3) needs to resolve a target, including
// the pieces the table itself leaves ambiguous and that SPEC_FULL.md's Open
// Questions resolve (disputeOutcome, a partial-refund flag).
type EventMapping struct {
	EventType entities.NormalizedEventType
	// Current is the transaction's status before this event. It is the
	// target for the two "no change" rows of the mapping table
	// (REFUND_FAILED, REFUND_PENDING): MapEventToStatus reports the
	// transition as a no-op by returning Current itself, rather than the
	// caller special-casing those two event types.
	Current entities.TransactionStatus
	// DisputeOutcome carries NormalizedEvent.ProviderMetadata["disputeOutcome"]
	// ("won" | "lost" | ""), consulted only for DISPUTE_RESOLVED.
	DisputeOutcome string
	// PartialRefund carries NormalizedEvent.ProviderMetadata["partialRefund"],
	// consulted only for REFUND_SUCCESSFUL, to route a partial settlement to
	// PARTIALLY_REFUNDED instead of the terminal REFUNDED.
	PartialRefund bool
}

// MapEventToStatus implements the event -> target-status mapping table from
// spec.md §4.3, with the two Open Questions it leaves unresolved decided per
// SPEC_FULL.md: REFUND_PENDING and REFUND_FAILED report "no change" by
// returning in.Current; an outcome-less DISPUTE_RESOLVED maps to SUCCESSFUL
// (dispute cancelled), matching the table's own parenthetical.
func MapEventToStatus(in EventMapping) (target entities.TransactionStatus, ok bool) {
	switch in.EventType {
	case entities.EventPaymentSuccessful:
		return entities.StatusSuccessful, true
	case entities.EventPaymentFailed:
		return entities.StatusFailed, true
	case entities.EventPaymentAbandoned:
		return entities.StatusAbandoned, true
	case entities.EventRefundSuccessful:
		if in.PartialRefund {
			return entities.StatusPartiallyRefunded, true
		}
		return entities.StatusRefunded, true
	case entities.EventRefundFailed:
		return in.Current, true
	case entities.EventRefundPending:
		return in.Current, true
	case entities.EventChargeDisputed:
		return entities.StatusDisputed, true
	case entities.EventDisputeResolved:
		switch in.DisputeOutcome {
		case "won":
			return entities.StatusResolvedWon, true
		case "lost":
			return entities.StatusResolvedLost, true
		case "":
			return entities.StatusSuccessful, true
		default:
			return "", false
		}
	default:
		return "", false
	}
}
