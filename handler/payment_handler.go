package handler

import (
	"net/http"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/service"
	"github.com/gin-gonic/gin"
)

// PaymentHandler serves synchronous extraction. Nothing is stored.
type PaymentHandler struct {
	extraction     *service.ExtractionService
	maxUploadBytes int64
}

func NewPaymentHandler(extraction *service.ExtractionService, maxUploadBytes int64) *PaymentHandler {
	return &PaymentHandler{
		extraction:     extraction,
		maxUploadBytes: maxUploadBytes,
	}
}

// ExtractFromFile handles POST /api/v1/payments/extract
func (h *PaymentHandler) ExtractFromFile(c *gin.Context) {
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

	resp, err := h.extraction.ExtractFromFile(c.Request.Context(), data)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExtractFromText handles POST /api/v1/payments/extract-text
func (h *PaymentHandler) ExtractFromText(c *gin.Context) {
	var req dto.ExtractTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is required")
		return
	}

	resp, err := h.extraction.ExtractFromText(c.Request.Context(), req.Text)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
