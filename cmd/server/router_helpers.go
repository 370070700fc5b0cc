package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// applyCORSMiddleware allows any origin to call the webhook endpoint and
// answers preflight requests directly, mirroring what providers' webhook
// senders expect from a publicly reachable delivery URL.
func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

// registerHealthRoute exposes a liveness probe for the deployment platform.
func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "payhook-ledger",
			"version": "0.1.0",
		})
	})
}
