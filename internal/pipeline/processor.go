package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/pkg/logger"
)

// DefaultTimeout bounds one claim's total stage time.
const DefaultTimeout = 30 * time.Second

// Hooks lets callers observe claim outcomes without the processor depending
// on an observer interface hierarchy, preferring functional options over
// registered listeners.
type Hooks struct {
	// OnWebhookFate fires once a claim has reached a terminal fate, whether
	// that is PROCESSED or a rejection.
	OnWebhookFate func(ctx context.Context, claim *Context)
	// OnError fires only for the infrastructure-failure path (storage and
	// other unclassified errors) that the HTTP layer turns into a 5xx.
	OnError func(ctx context.Context, claim *Context, err error)
}

// Processor runs every claim through the fixed stage sequence,
// enforces the per-claim timeout, and records the final webhook log status
// for every claim that reaches a fate, whichever stage ended it. A claim
// aborted by an infrastructure failure has no fate and no final write.
type Processor struct {
	stages      []Stage
	webhookLogs repositories.WebhookLogRepository
	metrics     *Metrics
	timeout     time.Duration
	hooks       Hooks
}

// Option configures a Processor at construction.
type Option func(*Processor)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

// WithHooks registers lifecycle callbacks for claim fates and infrastructure errors.
func WithHooks(h Hooks) Option {
	return func(p *Processor) { p.hooks = h }
}

// NewProcessor builds the processor from the fixed stage sequence.
func NewProcessor(webhookLogs repositories.WebhookLogRepository, metrics *Metrics, stages []Stage, opts ...Option) *Processor {
	p := &Processor{
		stages:      stages,
		webhookLogs: webhookLogs,
		metrics:     metrics,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is what the HTTP handler needs to answer the provider.
type Result struct {
	Fate         entities.ProcessingStatus
	WebhookLogID *string
}

// Process runs claim through every stage until one fails or all succeed. It
// never returns an error for a classified rejection — those are recorded as
// a fate and returned via Result, and a timeout is classified as
// PARSE_ERROR — but DOES return an error for infrastructure failures
// (storage and other unclassified errors) the handler must turn into a 5xx
// so the provider retries.
func (p *Processor) Process(ctx context.Context, claim *Context) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stageErr error
	for _, stage := range p.stages {
		stageStart := time.Now()
		err := stage.Run(ctx, claim)
		dur := time.Since(stageStart)
		claim.StageDurations[stage.Name()] = dur
		if p.metrics != nil {
			p.metrics.StageDuration.WithLabelValues(claim.Provider, stage.Name()).Observe(dur.Seconds())
		}

		if err != nil {
			if ctx.Err() != nil {
				stageErr = apperrors.Timeout("pipeline deadline exceeded during " + stage.Name())
				break
			}
			if claimErr, ok := err.(*apperrors.ClaimError); ok && claimErr.Continue {
				// S1-style classification: record the fate but keep running
				// the remaining stages (e.g. persist-claim must still run).
				claim.Fate = claimErr.Fate
				claim.ErrorMessage = claimErr.Error()
				continue
			}
			stageErr = err
			break
		}

		if stage.Name() == "dedup" && claim.Fate == "" {
			// Only a claim nothing upstream already classified (e.g. a
			// Continue-marked signature failure) earns PROCESSED here.
			claim.Fate = entities.FateProcessed
		}
	}

	claimErr, classified := stageErr.(*apperrors.ClaimError)
	switch {
	case stageErr == nil:
		// all stages completed; fate already set to PROCESSED after dedup
	case classified && claimErr.Fate != "":
		claim.Fate = claimErr.Fate
		claim.ErrorMessage = claimErr.Error()
	default:
		// infrastructure failure (storage/unclassified): no fate to record,
		// surface it so the HTTP layer can 5xx and let the provider retry.
		logger.Error(ctx, "pipeline aborted by infrastructure failure",
			zap.String("provider", claim.Provider),
			zap.String("processingId", claim.ProcessingID.String()),
			zap.Error(stageErr),
		)
		if p.hooks.OnError != nil {
			p.hooks.OnError(ctx, claim, stageErr)
		}
		return nil, stageErr
	}

	if p.metrics != nil {
		p.metrics.Fates.WithLabelValues(claim.Provider, string(claim.Fate)).Inc()
	}
	if p.hooks.OnWebhookFate != nil {
		p.hooks.OnWebhookFate(ctx, claim)
	}

	if claim.WebhookLogID != nil {
		// The claim's deadline may already have passed (timeout fate); the
		// final writes drop it so they still reach storage.
		writeCtx := context.WithoutCancel(ctx)
		if err := p.webhookLogs.UpdateStatus(writeCtx, *claim.WebhookLogID, claim.Fate, claim.ErrorMessage); err != nil {
			logger.Error(ctx, "failed to record final webhook log status", zap.Error(err))
		}
		durationMs := time.Since(start).Milliseconds()
		if err := p.webhookLogs.SetDuration(writeCtx, *claim.WebhookLogID, durationMs); err != nil {
			logger.Error(ctx, "failed to record webhook log duration", zap.Error(err))
		}
	}

	result := &Result{Fate: claim.Fate}
	if claim.WebhookLogID != nil {
		id := claim.WebhookLogID.String()
		result.WebhookLogID = &id
	}
	return result, nil
}
