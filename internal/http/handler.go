package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plate-reader/internal/config"
	"plate-reader/internal/domain/reader"
	"plate-reader/internal/http/middleware"
	"plate-reader/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	readerService *service.ReaderService
	config        *config.Config
	log           zerolog.Logger
}

func NewHandler(
	readerService *service.ReaderService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		readerService: readerService,
		config:        cfg,
		log:           log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/plates/correct", h.correctPlate)
		public.POST("/plates/recognize", h.recognizePlate)
		public.GET("/layouts", h.listLayouts)
		public.GET("/runs", h.listRuns)
		public.GET("/runs/:id", h.getRun)
	}

	operator := r.Group("/api/v1")
	operator.Use(authMiddleware, middleware.RequireOperator())
	{
		operator.GET("/runs/export", h.exportRuns)
	}

	admin := r.Group("/api/v1")
	admin.Use(authMiddleware, middleware.RequireAdmin())
	{
		admin.DELETE("/runs", h.deleteOldRuns)
	}
}

type correctRequest struct {
	Text   string `json:"text"`
	Layout string `json:"layout"`
}

func (h *Handler) correctPlate(c *gin.Context) {
	var req correctRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.readerService.Correct(req.Text, req.Layout)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) listLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default": h.readerService.DefaultLayout(),
		"layouts": h.readerService.Layouts(),
	})
}

func (h *Handler) recognizePlate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadSizeBytes)

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}

	uploadDir := filepath.Join(h.config.Input.DataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("dir", uploadDir).Msg("failed to create upload dir")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	name := uuid.NewString()[:8] + "_" + filepath.Base(file.Filename)
	uploadPath := filepath.Join(uploadDir, name)
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		h.log.Error().Err(err).Str("path", uploadPath).Msg("failed to save upload")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer os.Remove(uploadPath)

	h.log.Info().
		Str("filename", file.Filename).
		Int64("size", file.Size).
		Str("layout", c.PostForm("layout")).
		Msg("processing recognize request")

	run, err := h.readerService.Scan(c.Request.Context(), uploadPath, c.PostForm("layout"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(run))
}

func (h *Handler) listRuns(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	runs, err := h.readerService.FindRuns(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(runs))
}

func (h *Handler) getRun(c *gin.Context) {
	run, err := h.readerService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(run))
}

func (h *Handler) exportRuns(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	count, err := h.readerService.ExportRuns(c.Request.Context(), &buf, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().Int("runs", count).Msg("runs exported")

	filename := fmt.Sprintf("plate_runs_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) deleteOldRuns(c *gin.Context) {
	days := h.config.RunRetentionDays
	if d := c.Query("older_than_days"); d != "" {
		parsed, err := parseInt(d)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("older_than_days must be an integer"))
			return
		}
		days = parsed
	}

	deleted, err := h.readerService.CleanupOldRuns(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}

	principal, _ := middleware.GetPrincipal(c)
	h.log.Info().
		Str("subject", principal.Subject).
		Int("days", days).
		Int64("deleted_count", deleted).
		Msg("old runs deleted")

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"deleted_count": deleted,
		"days":          days,
	})
}

func (h *Handler) parseFilter(c *gin.Context) (reader.RunFilter, bool) {
	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil {
			offset = parsed
		}
	}

	filter, err := service.BuildFilter(c.Query("plate"), from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return filter, false
	}
	return filter, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reader.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, reader.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, reader.ErrNoPlate), errors.Is(err, reader.ErrImageUnreadable):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, reader.ErrHistoryDisabled),
		errors.Is(err, reader.ErrDetectorUnavailable),
		errors.Is(err, reader.ErrOCRUnavailable):
		h.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("dependency unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("handler error")
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
