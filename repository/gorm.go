package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aashish23092/farm-payment-ocr/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(databaseURL string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewGormStore wraps an existing connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables.
func (g *GormStore) Migrate() error {
	if err := g.db.AutoMigrate(&models.Client{}, &models.Payment{}, &models.ScreenshotUpload{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateClient adds a client.
func (g *GormStore) CreateClient(ctx context.Context, c *models.Client) error {
	if err := g.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (g *GormStore) ListClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := g.db.WithContext(ctx).Order("id").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (g *GormStore) FindClientsByName(ctx context.Context, pattern string) ([]models.Client, error) {
	var clients []models.Client
	like := "%" + escapeLike(strings.ToLower(pattern)) + "%"
	err := g.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", like).
		Order("id").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("find clients by name: %w", err)
	}
	return clients, nil
}

func (g *GormStore) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := g.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(fmt.Sprintf("client %d", id), err)
	}
	return &c, nil
}

func (g *GormStore) FindPaymentByUTR(ctx context.Context, utr string) (*models.Payment, error) {
	var p models.Payment
	err := g.db.WithContext(ctx).
		Preload("Client").
		Where("utr = ?", utr).
		Order("id").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by utr: %w", err)
	}
	return &p, nil
}

func (g *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return createPayment(g.db.WithContext(ctx), p)
}

func createPayment(tx *gorm.DB, p *models.Payment) error {
	err := tx.Omit("Client").Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create payment: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (g *GormStore) CreateScreenshot(ctx context.Context, s *models.ScreenshotUpload) error {
	if err := g.db.WithContext(ctx).Omit("MatchedClient").Create(s).Error; err != nil {
		return fmt.Errorf("create screenshot: %w", err)
	}
	return nil
}

func (g *GormStore) GetScreenshot(ctx context.Context, id uint) (*models.ScreenshotUpload, error) {
	var s models.ScreenshotUpload
	if err := g.db.WithContext(ctx).Preload("MatchedClient").First(&s, id).Error; err != nil {
		return nil, notFound(fmt.Sprintf("screenshot %d", id), err)
	}
	return &s, nil
}

func (g *GormStore) UpdateScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus) error {
	return updateScreenshot(g.db.WithContext(ctx), s, from)
}

// ConfirmScreenshot claims the screenshot before inserting the payment, so a
// concurrent confirm blocks on the row and then fails the status check.
func (g *GormStore) ConfirmScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus, p *models.Payment) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateScreenshot(tx, s, from); err != nil {
			return err
		}
		if err := createPayment(tx, p); err != nil {
			return err
		}
		err := tx.Model(&models.ScreenshotUpload{}).
			Where("id = ?", s.ID).
			Update("payment_id", p.ID).Error
		if err != nil {
			return fmt.Errorf("link payment: %w", err)
		}
		s.PaymentID = &p.ID
		return nil
	})
}

func updateScreenshot(tx *gorm.DB, s *models.ScreenshotUpload, from models.ScreenshotStatus) error {
	res := tx.Model(s).
		Where("status = ?", from).
		Select("*").
		Omit("MatchedClient", "CreatedAt").
		Updates(s)
	if res.Error != nil {
		return fmt.Errorf("update screenshot: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var current models.ScreenshotUpload
	if err := tx.Select("id", "status").First(&current, s.ID).Error; err != nil {
		return notFound(fmt.Sprintf("screenshot %d", s.ID), err)
	}
	return staleStatus(s.ID, current.Status, from)
}

func (g *GormStore) ListScreenshots(ctx context.Context, filter ScreenshotFilter) ([]models.ScreenshotUpload, error) {
	q := g.db.WithContext(ctx).Preload("MatchedClient").Order("id desc")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var out []models.ScreenshotUpload
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	return out, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// escapeLike escapes LIKE wildcards so a payer name is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Store = (*GormStore)(nil)
