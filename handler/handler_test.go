package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Aashish23092/farm-payment-ocr/client"
	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/logger"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/Aashish23092/farm-payment-ocr/service"
	"github.com/Aashish23092/farm-payment-ocr/storage"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiptText = `Payment Successful
₹ 2,400.00
Paid by Lakshmi Devi
UPI Ref No: 523456789012
05/10/2025`

type stubOCR struct{ text string }

func (s stubOCR) ExtractText(ctx context.Context, image []byte, lang string) (client.OCRResult, error) {
	return client.OCRResult{Text: s.text, Engine: "stub", Confidence: 90}, nil
}

type recordingPublisher struct{ ids []uint }

func (p *recordingPublisher) PublishScreenshot(ctx context.Context, id uint) error {
	p.ids = append(p.ids, id)
	return nil
}

type testServer struct {
	router      *gin.Engine
	store       *repository.MemoryStore
	screenshots *service.ScreenshotService
	publisher   *recordingPublisher
	logs        *bytes.Buffer
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	reader := service.NewDocumentReader(stubOCR{text: receiptText}, service.NewPDFProcessor(), service.NewQRScanner(), "eng", zerolog.Nop())
	matcher := service.NewClientMatcher(store, store)
	publisher := &recordingPublisher{}
	screenshots := service.NewScreenshotService(store, blobs, reader, matcher, publisher, zerolog.Nop())

	logs := &bytes.Buffer{}
	router := gin.New()
	router.Use(logger.GinLogger(logger.NewWithWriter(logs)))
	RegisterRoutes(router,
		NewScreenshotHandler(screenshots, maxUpload),
		NewPaymentHandler(service.NewExtractionService(reader, matcher), maxUpload),
	)

	return &testServer{router: router, store: store, screenshots: screenshots, publisher: publisher, logs: logs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(40, 40, color.White), imaging.PNG))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "receipt.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("uploaded_by", "counter-1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestScreenshotLifecycle(t *testing.T) {
	s := newTestServer(t, 1<<20)
	ctx := context.Background()
	lakshmi := models.Client{Name: "Lakshmi Devi", RatePerTray: decimal.NewFromInt(0)}
	require.NoError(t, s.store.CreateClient(ctx, &lakshmi))

	w := s.do(multipartRequest(t, "/api/v1/screenshots", pngBytes(t)))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted dto.AcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "uploaded", accepted.Status)
	assert.Equal(t, []uint{accepted.ID}, s.publisher.ids)

	// what a worker would do
	require.NoError(t, s.screenshots.Process(ctx, accepted.ID))

	w = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/screenshots/%d", accepted.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var record models.ScreenshotUpload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, models.StatusMatched, record.Status)
	assert.Equal(t, "523456789012", record.ExtractedUTR)
	assert.Equal(t, "counter-1", record.UploadedBy)

	w = s.do(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/screenshots/%d/confirm", accepted.ID), map[string]string{"notes": "20 trays"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, lakshmi.ID, payment.ClientID)
	assert.Equal(t, "2400", payment.Amount.String())
	assert.Contains(t, s.logs.String(), "Screenshot confirmed")
	assert.Contains(t, s.logs.String(), fmt.Sprintf(`"payment_id":%d`, payment.ID))

	w = s.do(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/screenshots/%d/confirm", accepted.ID), map[string]string{}))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS", decodeError(t, w).Error)

	w = s.do(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/screenshots/%d/reprocess", accepted.ID), nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfirmWithoutClient(t *testing.T) {
	s := newTestServer(t, 1<<20)
	ctx := context.Background()

	w := s.do(multipartRequest(t, "/api/v1/screenshots", pngBytes(t)))
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted dto.AcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NoError(t, s.screenshots.Process(ctx, accepted.ID))

	w = s.do(jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/screenshots/%d/confirm", accepted.ID), map[string]string{}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_CLIENT", decodeError(t, w).Error)

	w = s.do(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/screenshots/%d/reprocess", accepted.ID), nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, 64)

	w := s.do(multipartRequest(t, "/api/v1/screenshots", bytes.Repeat([]byte("x"), 100)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.do(multipartRequest(t, "/api/v1/screenshots", []byte("plain text")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FILE", decodeError(t, w).Error)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetScreenshotErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScreenshots(t *testing.T) {
	s := newTestServer(t, 1<<20)
	for i := 0; i < 3; i++ {
		w := s.do(multipartRequest(t, "/api/v1/screenshots", pngBytes(t)))
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots?status=uploaded&limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Screenshots []models.ScreenshotUpload `json:"screenshots"`
		Count       int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots?status=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractText(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/payments/extract-text", dto.ExtractTextRequest{Text: "₹1,234.56 paid"}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ExtractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Extracted.Amount)
	assert.Equal(t, "1234.56", resp.Extracted.Amount.String())
	assert.Nil(t, resp.Match)

	w = s.do(jsonRequest(t, http.MethodPost, "/api/v1/payments/extract-text", dto.ExtractTextRequest{Text: "  "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractFile(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(multipartRequest(t, "/api/v1/payments/extract", pngBytes(t)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.ExtractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "stub", resp.OCREngine)
	assert.Equal(t, service.SourceImageOCR, resp.Source)
	assert.Equal(t, "Lakshmi Devi", resp.Extracted.PayerName)
	require.NotNil(t, resp.Extracted.Date)
	assert.Equal(t, "2025-10-05", resp.Extracted.Date.Format("2006-01-02"))
}
