package main

import (
	"github.com/gin-gonic/gin"

	"payhook.dev/ledger/internal/interfaces/http/handlers"
)

type routeDeps struct {
	webhookHandler *handlers.WebhookHandler
}

// registerAPIV1Routes wires the single public surface this service exposes:
// provider webhook delivery. Everything else this repo does (outbox
// sweeping, dispatch fan-out) runs off this one inbound edge.
func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/:provider", d.webhookHandler.Handle)
		}
	}
}
