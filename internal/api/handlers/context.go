// backend/internal/api/handlers/context.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/middleware"
	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/Ayash-Bera/ctxinject/backend/internal/services"
	"github.com/Ayash-Bera/ctxinject/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxMessageLength = 10000
	analyzeTimeout   = 10 * time.Second
	feedbackTimeout  = 5 * time.Second
)

// ContextProvider is implemented by services.ContextService.
type ContextProvider interface {
	Analyze(ctx context.Context, projectID, userID, message string, opts services.ContextInjectionOptions) (*services.ContextAnalysisResult, error)
	Format(items []services.ContextItem, format services.Format) string
	Preview(ctx context.Context, projectID, userID string, items []services.ContextItem) (*services.ContextPreview, error)
	RecordFeedback(ctx context.Context, userID, itemID string, feedback models.FeedbackType, userMessage string)
}

type formatRequest struct {
	Items  []services.ContextItem `json:"items"`
	Format string                 `json:"format"`
}

type previewRequest struct {
	Items []services.ContextItem `json:"items"`
}

type ContextHandler struct {
	service  ContextProvider
	defaults services.ContextInjectionOptions
	logger   *logrus.Logger
}

// NewContextHandler uses defaults as the base that request options are merged onto.
func NewContextHandler(service ContextProvider, defaults services.ContextInjectionOptions, logger *logrus.Logger) *ContextHandler {
	return &ContextHandler{
		service:  service,
		defaults: defaults,
		logger:   logger,
	}
}

// RegisterRoutes mounts the context endpoints. The group must already run RequireUser.
func (h *ContextHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:projectId/context/analyze", h.HandleAnalyze)
	rg.POST("/projects/:projectId/context/preview", h.HandlePreview)
	rg.POST("/context/format", h.HandleFormat)
	rg.POST("/context/feedback", h.HandleFeedback)
}

// HandleAnalyze suggests context items for a chat message
func (h *ContextHandler) HandleAnalyze(c *gin.Context) {
	startTime := time.Now()

	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid analyze request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if len(req.Message) > maxMessageLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Message too long (max 10000 characters)", nil)
		return
	}

	projectID := c.Param("projectId")
	userID := middleware.UserID(c)
	opts := h.defaults.WithOverrides(req.Options)

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()

	result, err := h.service.Analyze(ctx, projectID, userID, req.Message, opts)
	if err != nil {
		h.respondError(c, "Context analysis failed", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"project_id":    projectID,
		"request_id":    c.GetString("request_id"),
		"suggested":     len(result.SuggestedContext),
		"response_time": time.Since(startTime).Milliseconds(),
	}).Info("Context analysis served")

	utils.SuccessResponse(c, http.StatusOK, "Context analyzed", result)
}

// HandleFormat renders items for prompt injection
func (h *ContextHandler) HandleFormat(c *gin.Context) {
	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	formatted := h.service.Format(req.Items, services.ParseFormat(req.Format))
	utils.SuccessResponse(c, http.StatusOK, "Context formatted", models.FormatResponse{Formatted: formatted})
}

// HandlePreview shows what would be injected
func (h *ContextHandler) HandlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), c.Param("projectId"), middleware.UserID(c), req.Items)
	if err != nil {
		h.respondError(c, "Context preview failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Context preview generated", preview)
}

// HandleFeedback accepts a verdict on a suggested item. The write happens after the
// response and its outcome is never reported to the caller.
func (h *ContextHandler) HandleFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}

	feedback := models.FeedbackType(strings.TrimSpace(req.Feedback))
	if !feedback.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback type", nil)
		return
	}

	userID := middleware.UserID(c)
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
		defer cancel()
		h.service.RecordFeedback(ctx, userID, req.ItemID, feedback, req.UserMessage)
	}()

	utils.SuccessResponse(c, http.StatusAccepted, "Feedback accepted", nil)
}

func (h *ContextHandler) respondError(c *gin.Context, message string, err error) {
	var srcErr *services.SourceError
	switch {
	case errors.Is(err, services.ErrAccessDenied):
		utils.ErrorResponse(c, http.StatusForbidden, "Access denied", err)
	case errors.Is(err, services.ErrInvalidOptions):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid context options", err)
	case errors.As(err, &srcErr):
		h.logger.WithError(err).WithField("source", srcErr.Source).Error(message)
		utils.ErrorResponse(c, http.StatusBadGateway, "Context source unavailable", err)
	default:
		h.logger.WithError(err).Error(message)
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
