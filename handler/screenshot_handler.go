package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/logger"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/Aashish23092/farm-payment-ocr/service"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type ScreenshotHandler struct {
	screenshots    *service.ScreenshotService
	maxUploadBytes int64
}

func NewScreenshotHandler(screenshots *service.ScreenshotService, maxUploadBytes int64) *ScreenshotHandler {
	return &ScreenshotHandler{
		screenshots:    screenshots,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /api/v1/screenshots. OCR runs in the background; the
// response only says the screenshot was accepted.
func (h *ScreenshotHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	data, err := readUpload(fh, h.maxUploadBytes)
	if err != nil {
		sendError(c, err)
		return
	}

	record, err := h.screenshots.Upload(c.Request.Context(), service.UploadInput{
		Data:         data,
		OriginalName: fh.Filename,
		UploadedBy:   c.PostForm("uploaded_by"),
	})
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{
		ID:      record.ID,
		Status:  string(record.Status),
		Message: "Screenshot accepted for processing",
	})
}

// List handles GET /api/v1/screenshots?status=processed,matched&limit=&offset=
func (h *ScreenshotHandler) List(c *gin.Context) {
	filter := repository.ScreenshotFilter{Limit: defaultListLimit}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, models.ScreenshotStatus(strings.ToLower(s)))
			}
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	records, err := h.screenshots.List(c.Request.Context(), filter)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"screenshots": records,
		"count":       len(records),
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// Get handles GET /api/v1/screenshots/:id
func (h *ScreenshotHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.screenshots.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Confirm handles POST /api/v1/screenshots/:id/confirm
func (h *ScreenshotHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	payment, err := h.screenshots.Confirm(c.Request.Context(), id, req)
	if err != nil {
		sendError(c, err)
		return
	}

	log := logger.FromContext(c.Request.Context())
	log.Info().
		Uint("screenshot_id", id).
		Uint("payment_id", payment.ID).
		Msg("Screenshot confirmed")
	c.JSON(http.StatusCreated, payment)
}

// Reprocess handles POST /api/v1/screenshots/:id/reprocess
func (h *ScreenshotHandler) Reprocess(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.screenshots.Reprocess(c.Request.Context(), id)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.AcceptedResponse{
		ID:      record.ID,
		Status:  string(record.Status),
		Message: "Screenshot queued for reprocessing",
	})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
