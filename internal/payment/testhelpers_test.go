package payment_test

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/payment-kingcard/internal/payment"
)

const (
	testAPIKey    = "merchant-key"
	testAPISecret = "merchant-secret"
)

type mockLedger struct {
	mu        sync.Mutex
	purchases map[string]payment.PurchaseRequest
	profile   payment.PaymentProfile
	state     map[string]string
	credits   map[string]int
	findErr   error
	applyErr  error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		purchases: make(map[string]payment.PurchaseRequest),
		profile: payment.PaymentProfile{
			ID:         1,
			ProviderID: "kingcard",
			APIKey:     testAPIKey,
			APISecret:  testAPISecret,
		},
		state:   make(map[string]string),
		credits: make(map[string]int),
	}
}

func (m *mockLedger) addPurchase(key, cost string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[key] = payment.PurchaseRequest{
		RequestKey:       key,
		CostAmount:       decimal.RequireFromString(cost),
		CostCurrency:     "VND",
		PurchasableType:  "user_upgrade",
		PaymentProfileID: m.profile.ID,
		ProviderID:       m.profile.ProviderID,
	}
	m.state[key] = "pending"
}

func (m *mockLedger) FindPurchase(ctx context.Context, key string) (payment.PurchaseRequest, payment.PaymentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return payment.PurchaseRequest{}, payment.PaymentProfile{}, m.findErr
	}
	p, ok := m.purchases[key]
	if !ok {
		return payment.PurchaseRequest{}, payment.PaymentProfile{}, payment.ErrPurchaseNotFound
	}
	return p, m.profile, nil
}

func (m *mockLedger) Apply(ctx context.Context, out payment.VerificationOutcome) (payment.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return payment.ApplyResult{}, m.applyErr
	}
	switch m.state[out.RequestKey] {
	case "completed":
		return payment.ApplyResult{AlreadyApplied: true}, nil
	case "reversed":
		m.state[out.RequestKey] = "completed"
		m.credits[out.RequestKey]++
		return payment.ApplyResult{Applied: true, Reinstated: true}, nil
	default:
		m.state[out.RequestKey] = "completed"
		m.credits[out.RequestKey]++
		return payment.ApplyResult{Applied: true}, nil
	}
}

type memAudit struct {
	mu      sync.Mutex
	records []payment.LogRecord
}

func (a *memAudit) Record(ctx context.Context, rec payment.LogRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *memAudit) last() payment.LogRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.records) == 0 {
		return payment.LogRecord{}
	}
	return a.records[len(a.records)-1]
}

func (a *memAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}
