package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"payhook.dev/ledger/internal/domain/adapters"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/interfaces/http/response"
	"payhook.dev/ledger/internal/pipeline"
)

// Processor is the narrow surface WebhookHandler depends on, implemented by
// pipeline.Processor.
type Processor interface {
	Process(ctx context.Context, claim *pipeline.Context) (*pipeline.Result, error)
}

// WebhookHandler handles provider webhook delivery endpoints.
type WebhookHandler struct {
	processor Processor
	adapters  *adapters.Registry
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor Processor, registry *adapters.Registry) *WebhookHandler {
	return &WebhookHandler{processor: processor, adapters: registry}
}

// Handle handles incoming provider webhooks. It responds 200 OK with a
// claimFate envelope whenever the pipeline reaches a fate; an unknown
// provider gets 404, an unreadable body 400, and an infrastructure failure
// that left the claim without a fate 500.
// POST /api/v1/webhooks/:provider
func (h *WebhookHandler) Handle(c *gin.Context) {
	provider := c.Param("provider")

	adapter, ok := h.adapters.Get(provider)
	if !ok {
		response.Error(c, apperrors.NotFound("unknown provider: "+provider))
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperrors.BadRequest("failed to read request body"))
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[strings.ToLower(k)] = c.Request.Header.Get(k)
	}

	claim := pipeline.NewContext(provider, rawBody, headers, time.Now().UTC())
	claim.Adapter = adapter

	result, err := h.processor.Process(c.Request.Context(), claim)
	if err != nil {
		response.Error(c, apperrors.InternalError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"received":     true,
		"claimFate":    result.Fate,
		"webhookLogId": result.WebhookLogID,
	})
}
