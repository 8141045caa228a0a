package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/Aashish23092/farm-payment-ocr/storage"
	"github.com/Aashish23092/farm-payment-ocr/utils/upi"
	"github.com/Aashish23092/farm-payment-ocr/worker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateUTR   = errors.New("a payment with this UTR already exists")
	ErrNoClient       = errors.New("no client to confirm the payment against")
	ErrInvalidRequest = errors.New("invalid request")
)

// Reader reads text out of an uploaded file. *DocumentReader satisfies it.
type Reader interface {
	Read(ctx context.Context, data []byte) (*Document, error)
}

// Publisher queues a screenshot for background processing.
type Publisher interface {
	PublishScreenshot(ctx context.Context, screenshotID uint) error
}

// UploadInput is a screenshot received from a client.
type UploadInput struct {
	Data         []byte
	OriginalName string
	UploadedBy   string
}

// ScreenshotService runs the screenshot lifecycle: upload, background OCR
// and extraction, client matching, and operator confirmation.
type ScreenshotService struct {
	store     repository.Store
	blobs     storage.BlobStore
	reader    Reader
	matcher   *ClientMatcher
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewScreenshotService(
	store repository.Store,
	blobs storage.BlobStore,
	reader Reader,
	matcher *ClientMatcher,
	publisher Publisher,
	log zerolog.Logger,
) *ScreenshotService {
	return &ScreenshotService{
		store:     store,
		blobs:     blobs,
		reader:    reader,
		matcher:   matcher,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Upload stores the file, records it as uploaded and queues processing. It
// does not wait for OCR. If queueing fails the record stays uploaded and is
// picked up by Resume.
func (s *ScreenshotService) Upload(ctx context.Context, in UploadInput) (*models.ScreenshotUpload, error) {
	contentType, err := DetectContentType(in.Data)
	if err != nil {
		return nil, err
	}

	uri, err := s.blobs.Put(ctx, storage.NewKey(in.OriginalName, s.now()), in.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store screenshot: %w", err)
	}

	record := &models.ScreenshotUpload{
		BlobURI:      uri,
		OriginalName: in.OriginalName,
		ContentType:  contentType,
		UploadedBy:   in.UploadedBy,
		Status:       models.StatusUploaded,
	}
	if err := s.store.CreateScreenshot(ctx, record); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishScreenshot(ctx, record.ID); err != nil {
		s.log.Warn().Err(err).Uint("screenshot_id", record.ID).Msg("Failed to queue screenshot, it will be resumed on restart")
	}

	s.log.Info().
		Uint("screenshot_id", record.ID).
		Str("content_type", contentType).
		Int("size", len(in.Data)).
		Msg("Screenshot uploaded")
	return record, nil
}

// Process reads, extracts and matches one screenshot. It first claims the
// record by moving it to processing, so a screenshot already being processed
// or confirmed is rejected with models.ErrInvalidTransition.
//
// A failed OCR or blob read moves the record to error. A failed match leaves
// it processed with the error recorded. Both return the error.
func (s *ScreenshotService) Process(ctx context.Context, id uint) error {
	record, err := s.store.GetScreenshot(ctx, id)
	if err != nil {
		return err
	}

	if err := s.advance(ctx, record, models.StatusProcessing, func() {
		record.Attempts++
		record.LastError = ""
	}); err != nil {
		return err
	}

	log := s.log.With().Uint("screenshot_id", id).Int("attempt", record.Attempts).Logger()

	data, err := s.blobs.Get(ctx, record.BlobURI)
	if err != nil {
		return s.fail(ctx, record, fmt.Errorf("failed to load screenshot: %w", err))
	}

	doc, err := s.reader.Read(ctx, data)
	if err != nil {
		return s.fail(ctx, record, err)
	}

	info := upi.MergeIntent(upi.Extract(doc.Text), doc.Intent)
	now := s.now()

	record.RawText = doc.Text
	record.OCREngine = doc.Engine
	record.OCRConfidence = doc.Confidence
	applyExtraction(record, info)
	record.MatchedClientID = nil
	record.MatchedClient = nil
	record.MatchStrategy = ""
	record.ProcessedAt = &now
	if err := s.advance(ctx, record, models.StatusProcessed, nil); err != nil {
		return err
	}

	log.Info().
		Str("engine", doc.Engine).
		Str("source", doc.Source).
		Str("amount_tier", string(info.AmountTier)).
		Bool("utr", info.UTR != "").
		Msg("Screenshot processed")

	match, err := s.matcher.Match(ctx, info)
	if err != nil {
		record.LastError = err.Error()
		if saveErr := s.store.UpdateScreenshot(ctx, record, models.StatusProcessed); saveErr != nil {
			log.Error().Err(saveErr).Msg("Failed to record match error")
		}
		return err
	}
	if match == nil {
		log.Info().Msg("No client matched, awaiting manual confirmation")
		return nil
	}

	if err := s.advance(ctx, record, models.StatusMatched, func() {
		record.MatchedClientID = &match.Client.ID
		record.MatchStrategy = match.Strategy
	}); err != nil {
		return err
	}

	log.Info().Uint("client_id", match.Client.ID).Str("strategy", match.Strategy).Msg("Screenshot matched")
	return nil
}

// advance moves record to next and applies edit, then stores it only if no
// other writer changed the status in the meantime.
func (s *ScreenshotService) advance(ctx context.Context, record *models.ScreenshotUpload, next models.ScreenshotStatus, edit func()) error {
	from := record.Status
	if err := record.TransitionTo(next); err != nil {
		return err
	}
	if edit != nil {
		edit()
	}
	return s.store.UpdateScreenshot(ctx, record, from)
}

func (s *ScreenshotService) fail(ctx context.Context, record *models.ScreenshotUpload, cause error) error {
	if err := s.advance(ctx, record, models.StatusError, func() {
		record.LastError = cause.Error()
	}); err != nil {
		return errors.Join(cause, err)
	}
	s.log.Error().Err(cause).Uint("screenshot_id", record.ID).Msg("Screenshot processing failed")
	return cause
}

func applyExtraction(record *models.ScreenshotUpload, info dto.ExtractedPaymentInfo) {
	record.ExtractedAmount = decimal.NullDecimal{}
	if info.Amount != nil {
		record.ExtractedAmount = decimal.NewNullDecimal(*info.Amount)
	}
	record.ExtractedAmountTier = string(info.AmountTier)
	record.ExtractedUTR = info.UTR
	record.ExtractedDate = info.Date
	record.ExtractedPayerName = info.PayerName
	record.ExtractedUPIID = info.UPIID
}

// HandleJob is the worker entry point. Errors that a retry cannot fix are
// marked permanent.
func (s *ScreenshotService) HandleJob(ctx context.Context, job *worker.ScreenshotJob) error {
	err := s.Process(ctx, job.ScreenshotID)
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, ErrUnsupportedType) {
		return worker.Permanent(err)
	}
	return err
}

// Confirm records the payment for a processed or matched screenshot. Request
// fields override what was extracted; the client falls back to the match.
func (s *ScreenshotService) Confirm(ctx context.Context, id uint, req dto.ConfirmPaymentRequest) (*models.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	record, err := s.store.GetScreenshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(record.Status, models.StatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, record.Status, models.StatusConfirmed)
	}

	clientID := req.ClientID
	if clientID == 0 && record.MatchedClientID != nil {
		clientID = *record.MatchedClientID
	}
	if clientID == 0 {
		return nil, ErrNoClient
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d does not exist", ErrNoClient, clientID)
		}
		return nil, err
	}

	var amount decimal.Decimal
	switch {
	case req.Amount != nil:
		amount = req.Amount.Round(2)
	case record.ExtractedAmount.Valid:
		amount = record.ExtractedAmount.Decimal
	default:
		return nil, fmt.Errorf("%w: amount is required, none was extracted", ErrInvalidRequest)
	}

	utr := req.UTR
	if utr == "" {
		utr = record.ExtractedUTR
	}
	if utr != "" {
		existing, err := s.store.FindPaymentByUTR(ctx, utr)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s (payment %d)", ErrDuplicateUTR, utr, existing.ID)
		}
	}

	paidOn := record.CreatedAt
	if d := req.ParsedDate(); d != nil {
		paidOn = *d
	} else if record.ExtractedDate != nil {
		paidOn = *record.ExtractedDate
	}

	payment := &models.Payment{
		ClientID:     clientID,
		Amount:       amount,
		UTR:          utr,
		PaymentDate:  paidOn,
		Method:       "upi",
		Notes:        req.Notes,
		ScreenshotID: &record.ID,
	}

	from := record.Status
	if err := record.TransitionTo(models.StatusConfirmed); err != nil {
		return nil, err
	}
	record.MatchedClientID = &clientID
	if err := s.store.ConfirmScreenshot(ctx, record, from, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUTR, utr)
		}
		return nil, err
	}

	s.log.Info().
		Uint("screenshot_id", id).
		Uint("payment_id", payment.ID).
		Uint("client_id", clientID).
		Str("amount", amount.StringFixed(2)).
		Msg("Payment confirmed")
	return payment, nil
}

// Reprocess queues a processed, matched or failed screenshot to be read again.
func (s *ScreenshotService) Reprocess(ctx context.Context, id uint) (*models.ScreenshotUpload, error) {
	record, err := s.store.GetScreenshot(ctx, id)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case models.StatusProcessed, models.StatusMatched, models.StatusError:
	default:
		return nil, fmt.Errorf("%w: cannot reprocess a %s screenshot", models.ErrInvalidTransition, record.Status)
	}

	if err := s.publisher.PublishScreenshot(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to queue screenshot: %w", err)
	}
	return record, nil
}

// Recover returns every screenshot left uploaded or processing, e.g. by a
// restart. A processing record was interrupted mid-read and is moved to error
// so a worker can claim it again. Run it before any worker starts.
func (s *ScreenshotService) Recover(ctx context.Context) ([]uint, error) {
	pending, err := s.store.ListScreenshots(ctx, repository.ScreenshotFilter{
		Statuses: []models.ScreenshotStatus{models.StatusUploaded, models.StatusProcessing},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(pending))
	for i := range pending {
		record := &pending[i]
		if record.Status == models.StatusProcessing {
			if err := s.advance(ctx, record, models.StatusError, func() {
				record.LastError = "interrupted before processing finished"
			}); err != nil {
				return ids, err
			}
		}
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// Requeue publishes the given screenshots and returns how many were queued.
func (s *ScreenshotService) Requeue(ctx context.Context, ids []uint) (int, error) {
	queued := 0
	for _, id := range ids {
		if err := s.publisher.PublishScreenshot(ctx, id); err != nil {
			return queued, fmt.Errorf("failed to queue screenshot %d: %w", id, err)
		}
		queued++
	}
	if queued > 0 {
		s.log.Info().Int("count", queued).Msg("Resumed pending screenshots")
	}
	return queued, nil
}

// Resume runs Recover and then Requeue.
func (s *ScreenshotService) Resume(ctx context.Context) (int, error) {
	ids, err := s.Recover(ctx)
	if err != nil {
		return 0, err
	}
	return s.Requeue(ctx, ids)
}

func (s *ScreenshotService) Get(ctx context.Context, id uint) (*models.ScreenshotUpload, error) {
	return s.store.GetScreenshot(ctx, id)
}

func (s *ScreenshotService) List(ctx context.Context, filter repository.ScreenshotFilter) ([]models.ScreenshotUpload, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, st)
		}
	}
	return s.store.ListScreenshots(ctx, filter)
}
