// Package outboxjob runs a best-effort local sweep of PENDING outbox events.
// It is not the production dispatcher worker that SPEC_FULL.md lists as out
// of scope — it exists so a single-process deployment still
// drains and retries the outbox rather than leaving it to grow unbounded.
package outboxjob

import (
	"context"
	"time"

	"go.uber.org/zap"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/pkg/logger"
)

// Sweeper periodically claims PENDING/retry-ready outbox rows and marks them
// processed. It has no delivery target of its own; Deliver is the hook a
// caller supplies to actually ship the event somewhere.
type Sweeper struct {
	outbox   repositories.OutboxRepository
	interval time.Duration
	batch    int
	baseBackoff time.Duration
	deliver  func(ctx context.Context, payload []byte) error
	stop     chan struct{}
}

// New builds a Sweeper. deliver is invoked once per claimed row; a non-nil
// error reschedules the row via MarkRetry instead of marking it processed.
func New(outbox repositories.OutboxRepository, interval time.Duration, batch int, deliver func(ctx context.Context, payload []byte) error) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		outbox:      outbox,
		interval:    interval,
		batch:       batch,
		baseBackoff: time.Second,
		deliver:     deliver,
		stop:        make(chan struct{}),
	}
}

// SetBaseBackoff overrides the default 1s base used to compute MarkRetry's
// exponential backoff. Call before Start.
func (s *Sweeper) SetBaseBackoff(d time.Duration) {
	if d > 0 {
		s.baseBackoff = d
	}
}

// Start runs the sweep loop until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info(ctx, "starting outbox sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "outbox sweeper stopped (context cancelled)")
			return
		case <-s.stop:
			logger.Info(ctx, "outbox sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals the sweep loop to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
}

func (s *Sweeper) sweep(ctx context.Context) {
	pending, err := s.outbox.ClaimPending(ctx, s.batch, time.Now())
	if err != nil {
		logger.Error(ctx, "failed to claim pending outbox events", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	for _, event := range pending {
		err := s.deliver(ctx, event.Payload)
		now := time.Now()
		if err != nil {
			if markErr := s.outbox.MarkRetry(ctx, event.ID, err.Error(), now, s.baseBackoff); markErr != nil {
				logger.Error(ctx, "failed to reschedule outbox event", zap.String("outboxEventId", event.ID.String()), zap.Error(markErr))
			}
			continue
		}
		if markErr := s.outbox.MarkProcessed(ctx, event.ID, now); markErr != nil {
			logger.Error(ctx, "failed to mark outbox event processed", zap.String("outboxEventId", event.ID.String()), zap.Error(markErr))
		}
	}
}
