package handler

import (
	"errors"
	"net/http"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/logger"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/Aashish23092/farm-payment-ocr/service"
	"github.com/gin-gonic/gin"
)

var errUploadTooLarge = errors.New("file exceeds the upload limit")

// statusFor maps service errors to an HTTP status and an error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrEmptyDocument):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, service.ErrUnsupportedType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE"
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATUS"
	case errors.Is(err, service.ErrDuplicateUTR):
		return http.StatusConflict, "DUPLICATE_UTR"
	case errors.Is(err, service.ErrNoClient):
		return http.StatusUnprocessableEntity, "NO_CLIENT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// sendError sends a structured error response
func sendError(c *gin.Context, err error) {
	statusCode, code := statusFor(err)

	log := logger.FromContext(c.Request.Context())
	if statusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	} else {
		log.Warn().Err(err).Int("status", statusCode).Msg("Request rejected")
	}

	c.JSON(statusCode, dto.ErrorResponse{
		Error:   code,
		Message: err.Error(),
		Code:    statusCode,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "INVALID_REQUEST",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
