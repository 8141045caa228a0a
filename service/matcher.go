package service

import (
	"context"
	"fmt"

	"github.com/Aashish23092/farm-payment-ocr/dto"
	"github.com/Aashish23092/farm-payment-ocr/models"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/shopspring/decimal"
)

const (
	StrategyUTRLookback           = "utr_lookback"
	StrategyLegacyAmountProximity = "legacy_amount_proximity"
	StrategyPayerName             = "payer_name"
)

// legacyProximity is how far a client's rate per tray may be from the
// payment amount for the legacy strategy to pick that client.
var legacyProximity = decimal.NewFromInt(100)

// Match is the client a payment was associated with and the strategy that
// found it.
type Match struct {
	Client   models.Client
	Strategy string
}

// matchStrategy returns (nil, nil) when it has nothing to say.
type matchStrategy struct {
	name string
	fn   func(ctx context.Context, info dto.ExtractedPaymentInfo) (*models.Client, error)
}

// ClientMatcher associates extracted payment details with a known client.
// Strategies run in a fixed order and the first one to find a client wins.
type ClientMatcher struct {
	clients    repository.ClientRepository
	payments   repository.PaymentRepository
	strategies []matchStrategy
}

type MatcherOption func(*matcherOptions)

type matcherOptions struct {
	legacyAmountProximity bool
}

// WithLegacyAmountProximity turns the rate-per-tray proximity strategy on or
// off. It is on by default.
func WithLegacyAmountProximity(enabled bool) MatcherOption {
	return func(o *matcherOptions) { o.legacyAmountProximity = enabled }
}

func NewClientMatcher(clients repository.ClientRepository, payments repository.PaymentRepository, opts ...MatcherOption) *ClientMatcher {
	o := matcherOptions{legacyAmountProximity: true}
	for _, opt := range opts {
		opt(&o)
	}

	m := &ClientMatcher{clients: clients, payments: payments}
	m.strategies = append(m.strategies, matchStrategy{StrategyUTRLookback, m.byUTR})
	if o.legacyAmountProximity {
		m.strategies = append(m.strategies, matchStrategy{StrategyLegacyAmountProximity, m.byRateProximity})
	}
	m.strategies = append(m.strategies, matchStrategy{StrategyPayerName, m.byPayerName})
	return m
}

// Strategies returns the strategy names in the order they run.
func (m *ClientMatcher) Strategies() []string {
	names := make([]string, 0, len(m.strategies))
	for _, s := range m.strategies {
		names = append(names, s.name)
	}
	return names
}

// Match returns nil when no strategy found a client. A repository error is
// returned as an error and never treated as "no match".
func (m *ClientMatcher) Match(ctx context.Context, info dto.ExtractedPaymentInfo) (*Match, error) {
	for _, s := range m.strategies {
		client, err := s.fn(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("match by %s: %w", s.name, err)
		}
		if client != nil {
			return &Match{Client: *client, Strategy: s.name}, nil
		}
	}
	return nil, nil
}

func (m *ClientMatcher) byUTR(ctx context.Context, info dto.ExtractedPaymentInfo) (*models.Client, error) {
	if info.UTR == "" {
		return nil, nil
	}
	payment, err := m.payments.FindPaymentByUTR(ctx, info.UTR)
	if err != nil || payment == nil {
		return nil, err
	}
	return payment.Client, nil
}

// byRateProximity compares the payment total against each client's price
// per tray. Those are different quantities, so this only matches when a
// client pays for about one tray at a time.
func (m *ClientMatcher) byRateProximity(ctx context.Context, info dto.ExtractedPaymentInfo) (*models.Client, error) {
	if info.Amount == nil {
		return nil, nil
	}
	clients, err := m.clients.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		rate := clients[i].RatePerTray
		if !rate.IsPositive() {
			continue
		}
		if rate.Sub(*info.Amount).Abs().LessThanOrEqual(legacyProximity) {
			return &clients[i], nil
		}
	}
	return nil, nil
}

func (m *ClientMatcher) byPayerName(ctx context.Context, info dto.ExtractedPaymentInfo) (*models.Client, error) {
	if info.PayerName == "" {
		return nil, nil
	}
	clients, err := m.clients.FindClientsByName(ctx, info.PayerName)
	if err != nil || len(clients) == 0 {
		return nil, err
	}
	return &clients[0], nil
}
