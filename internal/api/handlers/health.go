package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/health"
	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/gin-gonic/gin"
)

// HealthReporter is implemented by health.HealthChecker.
type HealthReporter interface {
	Current(ctx context.Context) health.OverallHealth
}

type HealthHandler struct {
	reporter HealthReporter
}

func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// HandleHealth answers 200 when every dependency is healthy and 503 otherwise.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	overall := h.reporter.Current(c.Request.Context())

	services := make(map[string]string, len(overall.Services))
	for _, s := range overall.Services {
		services[s.Name] = s.Status
	}

	code := http.StatusOK
	if overall.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, models.HealthResponse{
		Status:    overall.Status,
		Service:   "ctxinject",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
