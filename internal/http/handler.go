package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-capture-service/internal/service"
)

// BackfillTrigger is the on-demand repair entry point exposed to operators.
type BackfillTrigger interface {
	Backfill(ctx context.Context, start, end time.Time) (service.RunStats, error)
}

type Handler struct {
	queryService *service.QueryService
	backfill     BackfillTrigger
	log          zerolog.Logger
}

func NewHandler(queryService *service.QueryService, backfill BackfillTrigger, log zerolog.Logger) *Handler {
	return &Handler{
		queryService: queryService,
		backfill:     backfill,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/detections", h.listDetections)
		public.GET("/write-errors", h.listWriteErrors)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/backfill", h.runBackfill)
	}
}

func (h *Handler) listDetections(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	detections, err := h.queryService.FindDetections(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(detections))
}

func (h *Handler) listWriteErrors(c *gin.Context) {
	window := time.Hour
	if m := c.Query("minutes"); m != "" {
		if parsed, err := parseInt(m); err == nil && parsed > 0 {
			window = time.Duration(parsed) * time.Minute
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	writeErrors, err := h.queryService.RecentWriteErrors(c.Request.Context(), window, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(writeErrors))
}

type backfillRequest struct {
	Hours float64 `json:"hours" binding:"required,gt=0"`
}

func (h *Handler) runBackfill(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(req.Hours * float64(time.Hour)))

	stats, err := h.backfill.Backfill(c.Request.Context(), start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("on-demand backfill failed")
		c.JSON(http.StatusBadGateway, errorResponse("backfill failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"window_start": start,
		"window_end":   end,
		"detected":     stats.Detected,
		"stored":       stats.Stored,
		"skipped":      stats.Skipped,
		"write_errors": stats.WriteErrors,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
