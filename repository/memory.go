package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/models"
)

// MemoryStore is an in-memory implementation of Store.
// It is safe for concurrent use and returns copies so callers cannot mutate
// stored records. Data is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      uint
	clients     map[uint]models.Client
	payments    map[uint]models.Payment
	screenshots map[uint]models.ScreenshotUpload
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:     make(map[uint]models.Client),
		payments:    make(map[uint]models.Payment),
		screenshots: make(map[uint]models.ScreenshotUpload),
	}
}

func (m *MemoryStore) newID() uint {
	m.nextID++
	return m.nextID
}

// CreateClient adds a client, assigning its id.
func (m *MemoryStore) CreateClient(ctx context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.newID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.clients[c.ID] = *c
	return nil
}

func (m *MemoryStore) ListClients(ctx context.Context) ([]models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) FindClientsByName(ctx context.Context, pattern string) ([]models.Client, error) {
	all, err := m.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(pattern)
	var out []models.Client
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) FindPaymentByUTR(ctx context.Context, utr string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *models.Payment
	for _, p := range m.payments {
		if p.UTR != utr {
			continue
		}
		if found == nil || p.ID < found.ID {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, nil
	}
	if c, ok := m.clients[found.ClientID]; ok {
		found.Client = &c
	}
	return found, nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertPayment(p)
}

// insertPayment enforces the payment constraints; callers hold the write lock.
func (m *MemoryStore) insertPayment(p *models.Payment) error {
	if _, ok := m.clients[p.ClientID]; !ok {
		return fmt.Errorf("client %d: %w", p.ClientID, ErrNotFound)
	}
	for _, existing := range m.payments {
		if p.UTR != "" && existing.UTR == p.UTR {
			return fmt.Errorf("payment utr %s: %w", p.UTR, ErrDuplicate)
		}
		if p.ScreenshotID != nil && existing.ScreenshotID != nil && *existing.ScreenshotID == *p.ScreenshotID {
			return fmt.Errorf("payment for screenshot %d: %w", *p.ScreenshotID, ErrDuplicate)
		}
	}
	p.ID = m.newID()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	stored := *p
	stored.Client = nil
	m.payments[p.ID] = stored
	return nil
}

func (m *MemoryStore) CreateScreenshot(ctx context.Context, s *models.ScreenshotUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = m.newID()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt

	stored := *s
	stored.MatchedClient = nil
	m.screenshots[s.ID] = stored
	return nil
}

func (m *MemoryStore) GetScreenshot(ctx context.Context, id uint) (*models.ScreenshotUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.screenshots[id]
	if !ok {
		return nil, fmt.Errorf("screenshot %d: %w", id, ErrNotFound)
	}
	m.populate(&s)
	return &s, nil
}

func (m *MemoryStore) UpdateScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStatus(s.ID, from); err != nil {
		return err
	}
	m.putScreenshot(s)
	return nil
}

func (m *MemoryStore) ConfirmScreenshot(ctx context.Context, s *models.ScreenshotUpload, from models.ScreenshotStatus, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStatus(s.ID, from); err != nil {
		return err
	}
	if err := m.insertPayment(p); err != nil {
		return err
	}
	s.PaymentID = &p.ID
	m.putScreenshot(s)
	return nil
}

// checkStatus compares the stored status; callers hold the write lock.
func (m *MemoryStore) checkStatus(id uint, from models.ScreenshotStatus) error {
	current, ok := m.screenshots[id]
	if !ok {
		return fmt.Errorf("screenshot %d: %w", id, ErrNotFound)
	}
	if current.Status != from {
		return staleStatus(id, current.Status, from)
	}
	return nil
}

func (m *MemoryStore) putScreenshot(s *models.ScreenshotUpload) {
	s.UpdatedAt = time.Now()

	stored := *s
	stored.MatchedClient = nil
	m.screenshots[s.ID] = stored
}

func (m *MemoryStore) ListScreenshots(ctx context.Context, filter ScreenshotFilter) ([]models.ScreenshotUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ScreenshotUpload
	for _, s := range m.screenshots {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, s.Status) {
			continue
		}
		m.populate(&s)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.ScreenshotUpload{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// populate fills the matched client; callers hold the read lock.
func (m *MemoryStore) populate(s *models.ScreenshotUpload) {
	s.MatchedClient = nil
	if s.MatchedClientID == nil {
		return
	}
	if c, ok := m.clients[*s.MatchedClientID]; ok {
		s.MatchedClient = &c
	}
}

func containsStatus(list []models.ScreenshotStatus, s models.ScreenshotStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
