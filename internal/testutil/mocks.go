package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/shopspring/decimal"
)

// --- Platform Mock ---

// MockPlatform is a mock implementation of session.Platform.
type MockPlatform struct {
	CanPay          bool
	CanUseNetworks  bool
	PanicOnProbe    bool
	RequestedBrands []sheet.Network
}

func (m *MockPlatform) CanMakePayments() bool {
	if m.PanicOnProbe {
		panic("platform probe unavailable")
	}
	return m.CanPay
}

func (m *MockPlatform) CanMakePaymentsUsingNetworks(networks []sheet.Network) bool {
	m.RequestedBrands = networks
	return m.CanUseNetworks
}

// --- Presenter Mock ---

// MockPresenter is a mock implementation of session.Presenter.
type MockPresenter struct {
	mu        sync.Mutex
	presented map[string]*sheet.PaymentRequest
	delegates map[string]session.Delegate
	dismissed []string

	PresentFunc func(ctx context.Context, req *sheet.PaymentRequest, d session.Delegate) error
}

func NewMockPresenter() *MockPresenter {
	return &MockPresenter{
		presented: make(map[string]*sheet.PaymentRequest),
		delegates: make(map[string]session.Delegate),
	}
}

func (m *MockPresenter) Present(ctx context.Context, req *sheet.PaymentRequest, d session.Delegate) error {
	if m.PresentFunc != nil {
		return m.PresentFunc(ctx, req, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presented[d.ID()] = req
	m.delegates[d.ID()] = d
	return nil
}

func (m *MockPresenter) Dismiss(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delegates, id)
	m.dismissed = append(m.dismissed, id)
}

// Presented returns the request handed to the sheet for a session.
func (m *MockPresenter) Presented(id string) *sheet.PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presented[id]
}

// PresentedCount returns the number of sheets ever presented.
func (m *MockPresenter) PresentedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.presented)
}

// Dismissed returns the ids of dismissed sessions in order.
func (m *MockPresenter) Dismissed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dismissed...)
}

// --- Attempt Recorder Mock ---

// MockAttemptRecorder is an in-memory session.AttemptRecorder that can also
// list what it recorded.
type MockAttemptRecorder struct {
	mu       sync.Mutex
	attempts []*session.Attempt

	RecordAttemptFunc func(ctx context.Context, a *session.Attempt) error
}

func (m *MockAttemptRecorder) RecordAttempt(ctx context.Context, a *session.Attempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MockAttemptRecorder) Attempts() []*session.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*session.Attempt(nil), m.attempts...)
}

func (m *MockAttemptRecorder) ListBySession(ctx context.Context, sessionID string, limit int) ([]*session.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*session.Attempt
	for _, a := range m.attempts {
		if a.SessionID == sessionID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- Coupon Service Mock ---

// MockCouponService is a mock implementation of sheet.CouponService.
type MockCouponService struct {
	mu    sync.Mutex
	codes []decimal.Decimal

	ApplyFunc func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error)
}

func (m *MockCouponService) ApplyCouponCode(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
	m.mu.Lock()
	m.codes = append(m.codes, code)
	m.mu.Unlock()
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, code)
	}
	return nil, nil
}

// Calls returns the codes the service was asked to apply.
func (m *MockCouponService) Calls() []decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]decimal.Decimal(nil), m.codes...)
}
