package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aashish23092/farm-payment-ocr/models"
)

var (
	// ErrNotFound is returned when a record looked up by id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a payment reuses a UTR or screenshot
	// that another payment already holds.
	ErrDuplicate = errors.New("duplicate record")
)

// ClientRepository is read access to the client list.
type ClientRepository interface {
	// ListClients returns every client ordered by id.
	ListClients(ctx context.Context) ([]models.Client, error)

	// FindClientsByName returns clients whose name contains pattern,
	// case-insensitively, ordered by id.
	FindClientsByName(ctx context.Context, pattern string) ([]models.Client, error)

	// GetClient returns ErrNotFound if the client does not exist.
	GetClient(ctx context.Context, id uint) (*models.Client, error)
}

// PaymentRepository stores confirmed payments.
type PaymentRepository interface {
	// FindPaymentByUTR returns the payment with exactly this UTR with its
	// client populated, or nil when there is none.
	FindPaymentByUTR(ctx context.Context, utr string) (*models.Payment, error)

	// CreatePayment returns ErrDuplicate if the UTR or screenshot is taken.
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// ScreenshotRepository persists screenshot uploads and their status.
type ScreenshotRepository interface {
	CreateScreenshot(ctx context.Context, s *models.ScreenshotUpload) error

	// GetScreenshot returns ErrNotFound if the screenshot does not exist.
	GetScreenshot(ctx context.Context, id uint) (*models.ScreenshotUpload, error)

	// UpdateScreenshot writes s only if the stored status is still from.
	// Otherwise it returns an error wrapping models.ErrInvalidTransition and
	// leaves the record alone.
	UpdateScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus) error

	// ConfirmScreenshot creates payment and writes s in one step, under the
	// same status check as UpdateScreenshot. On success s.PaymentID is set.
	ConfirmScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus, payment *models.Payment) error

	ListScreenshots(ctx context.Context, filter ScreenshotFilter) ([]models.ScreenshotUpload, error)
}

// ScreenshotFilter defines filtering criteria for listing screenshots.
type ScreenshotFilter struct {
	// Statuses filters by any of the given statuses.
	Statuses []models.ScreenshotStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Store is everything the screenshot workflow needs from persistence.
type Store interface {
	ClientRepository
	PaymentRepository
	ScreenshotRepository
}

// staleStatus reports that another writer moved the screenshot first.
func staleStatus(id uint, current, expected models.ScreenshotStatus) error {
	return fmt.Errorf("%w: screenshot %d is %s, expected %s", models.ErrInvalidTransition, id, current, expected)
}
