package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scenthaus/mediasweep/internal/storage"
	"github.com/scenthaus/mediasweep/pkg/types"
)

// JobRunner interface for delete-job operations
type JobRunner interface {
	ProcessBatch(ctx context.Context, batchSize, maxAttempts int) (*types.ProcessReport, error)
	Enqueue(ctx context.Context, req types.EnqueueRequest) (*types.EnqueueResponse, error)
	ListJobs(ctx context.Context, status string, limit, offset int) ([]types.JobView, error)
	PendingCount(ctx context.Context) (int, error)
	PruneTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Handler handles HTTP API requests
type Handler struct {
	runner JobRunner
}

// NewHandler creates a new API handler
func NewHandler(runner JobRunner) *Handler {
	return &Handler{
		runner: runner,
	}
}

// SetupRoutes configures the API routes. The auth middleware guards the
// job endpoints; health and metrics stay open for probes and scrapers.
func SetupRoutes(router *gin.Engine, handler *Handler, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api/v1")
	api.Use(authMiddleware)
	{
		api.POST("/jobs/process", handler.ProcessJobs)
		api.POST("/jobs/enqueue", handler.EnqueueJobs)
		api.GET("/jobs", handler.ListJobs)
		api.GET("/jobs/pending", handler.PendingJobs)
		api.POST("/jobs/prune", handler.PruneJobs)
	}

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ProcessJobs drains one batch of pending delete jobs
func (h *Handler) ProcessJobs(c *gin.Context) {
	batchSize, err := queryInt(c, "batch", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "batch must be an integer",
			Code:    400,
		})
		return
	}

	maxAttempts, err := queryInt(c, "maxAttempts", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "maxAttempts must be an integer",
			Code:    400,
		})
		return
	}

	report, err := h.runner.ProcessBatch(c.Request.Context(), batchSize, maxAttempts)
	if err != nil {
		if errors.Is(err, storage.ErrQueueUnavailable) {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "storage misconfigured",
				Message: "delete_jobs table not found, run the schema migration",
				Code:    500,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to process jobs",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// EnqueueJobs registers deletion intents for a set of asset URLs
func (h *Handler) EnqueueJobs(c *gin.Context) {
	var req types.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
			Code:    400,
		})
		return
	}

	if len(req.ImageURLs) == 0 && len(req.PublicIDs) == 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "image_urls or public_ids are required",
			Code:    400,
		})
		return
	}

	resp, err := h.runner.Enqueue(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to enqueue jobs",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs returns stored jobs for the admin queue page
func (h *Handler) ListJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "limit must be an integer",
			Code:    400,
		})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "offset must be an integer",
			Code:    400,
		})
		return
	}

	jobs, err := h.runner.ListJobs(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to list jobs",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, types.ListJobsResponse{Jobs: jobs})
}

// PendingJobs returns the count of jobs awaiting processing
func (h *Handler) PendingJobs(c *gin.Context) {
	pending, err := h.runner.PendingCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to count pending jobs",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, types.PendingResponse{Pending: pending})
}

// PruneJobs removes terminal job rows older than the given age
func (h *Handler) PruneJobs(c *gin.Context) {
	hours, err := queryInt(c, "olderThanHours", 168)
	if err != nil || hours < 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "olderThanHours must be a non-negative integer",
			Code:    400,
		})
		return
	}

	pruned, err := h.runner.PruneTerminal(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to prune jobs",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, types.PruneResponse{Pruned: pruned})
}

// HealthCheck provides service health information
func (h *Handler) HealthCheck(c *gin.Context) {
	response := types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}

	pending, err := h.runner.PendingCount(c.Request.Context())
	if err != nil {
		response.Status = "degraded"
		c.JSON(http.StatusOK, response)
		return
	}
	response.PendingJobs = pending

	c.JSON(http.StatusOK, response)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
