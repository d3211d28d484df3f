package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JerryLinyx/PressGO/backend"
)

type HealthController struct {
	client  backend.Client
	timeout time.Duration
}

func NewHealthController(client backend.Client) *HealthController {
	return &HealthController{client: client, timeout: 3 * time.Second}
}

// Health is an unauthenticated liveness endpoint that also reports whether
// the backend answers.
func (h *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.client.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "degraded",
			"backend":   backend.Message(err, "unreachable"),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"backend":   "ok",
		"timestamp": time.Now().UTC(),
	})
}
