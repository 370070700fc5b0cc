package pipeline

import (
	"context"

	"go.uber.org/zap"
	"payhook.dev/ledger/pkg/logger"
)

// DispatchStage fans the settled event out to registered handlers and
// writes the outbox event that backs at-least-once delivery. A
// dispatch failure never changes the claim's fate; PROCESSED was already
// earned by reaching this stage.
type DispatchStage struct {
	Dispatcher Dispatcher
}

func NewDispatchStage(dispatcher Dispatcher) *DispatchStage {
	return &DispatchStage{Dispatcher: dispatcher}
}

func (s *DispatchStage) Name() string { return "dispatch" }

func (s *DispatchStage) Run(ctx context.Context, claim *Context) error {
	if claim.Fate.SkipsDispatch() {
		return nil
	}
	if err := s.Dispatcher.Dispatch(ctx, claim); err != nil {
		// Logged here, not returned: a dispatch/outbox-write failure must
		// never downgrade an already-settled claim's fate.
		logger.Error(ctx, "dispatch failed",
			zap.String("processingId", claim.ProcessingID.String()),
			zap.Error(err),
		)
	}
	return nil
}
