package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shop-payments/internal/audit"
	"shop-payments/internal/domain"
	"shop-payments/internal/gateway"
)

// memStore backs the in-memory repos used by the service tests. ApplyVerified
// and TransitionStatus mirror the conditional-write semantics of the real
// Postgres implementations.
type memStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	attempts map[string]*domain.PaymentAttempt
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]*domain.Order),
		attempts: make(map[string]*domain.PaymentAttempt),
	}
}

type memOrderRepo struct {
	store *memStore
}

func (r *memOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *order
	r.store.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (r *memOrderRepo) TransitionStatus(_ context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.orders[order.ID]
	if !ok || current.Status != from {
		return false, nil
	}
	current.Status = order.Status
	current.TrackingCode = order.TrackingCode
	current.ShippedAt = order.ShippedAt
	current.DeliveredAt = order.DeliveredAt
	current.AutoCompleteAt = order.AutoCompleteAt
	return true, nil
}

func (r *memOrderRepo) FindAutoCompletable(_ context.Context, now time.Time, limit int) ([]domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Order
	for _, o := range r.store.orders {
		if o.Status == domain.OrderShipped && o.AutoCompleteAt != nil && !o.AutoCompleteAt.After(now) {
			out = append(out, *o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOrderRepo) PromoteDelivered(_ context.Context, id uuid.UUID, expectedAutoCompleteAt, deliveredAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok || o.Status != domain.OrderShipped || o.AutoCompleteAt == nil || !o.AutoCompleteAt.Equal(expectedAutoCompleteAt) {
		return false, nil
	}
	o.Status = domain.OrderDelivered
	o.DeliveredAt = &deliveredAt
	o.AutoCompleteAt = nil
	return true, nil
}

type memPaymentRepo struct {
	store *memStore
	// beforeApply runs inside ApplyVerified before the outcome check, letting
	// tests interleave a competing writer.
	beforeApply func()
}

func (r *memPaymentRepo) Create(_ context.Context, attempt *domain.PaymentAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *attempt
	r.store.attempts[attempt.Reference] = &cp
	return nil
}

func (r *memPaymentRepo) FindByReference(_ context.Context, reference string) (*domain.PaymentAttempt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	attempt, ok := r.store.attempts[reference]
	if !ok {
		return nil, nil
	}
	cp := *attempt
	return &cp, nil
}

func (r *memPaymentRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.PaymentAttempt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.PaymentAttempt
	for _, a := range r.store.attempts {
		if a.OrderID == orderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) ApplyVerified(_ context.Context, reference, providerRefID, cardPan string, paidAt time.Time) (bool, error) {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	attempt, ok := r.store.attempts[reference]
	if !ok || attempt.Outcome != domain.AttemptInitiated {
		return false, nil
	}
	order, ok := r.store.orders[attempt.OrderID]
	if !ok || order.Status != domain.OrderPending || order.IsPaid {
		return false, fmt.Errorf("order %s not payable while applying verification", attempt.OrderID)
	}

	attempt.Outcome = domain.AttemptVerified
	attempt.ProviderRefID = &providerRefID
	if cardPan != "" {
		attempt.CardPan = &cardPan
	}
	order.Status = domain.OrderProcessing
	order.IsPaid = true
	order.PaidAt = &paidAt
	return true, nil
}

func (r *memPaymentRepo) MarkFailed(_ context.Context, reference string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	attempt, ok := r.store.attempts[reference]
	if ok && attempt.Outcome == domain.AttemptInitiated {
		attempt.Outcome = domain.AttemptFailed
	}
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeAdapter struct {
	name          domain.Gateway
	requestResult *gateway.RequestResult
	requestErr    error
	verifyResult  *gateway.VerifyResult
	verifyErr     error
	requestCalls  int
	verifyCalls   int
}

func (a *fakeAdapter) Name() domain.Gateway { return a.name }

func (a *fakeAdapter) RequestPayment(_ context.Context, _ gateway.RequestInput, _ gateway.Credentials) (*gateway.RequestResult, error) {
	a.requestCalls++
	return a.requestResult, a.requestErr
}

func (a *fakeAdapter) VerifyPayment(_ context.Context, _ int64, _ string, _ gateway.Credentials) (*gateway.VerifyResult, error) {
	a.verifyCalls++
	return a.verifyResult, a.verifyErr
}

type fakeConfig struct {
	gw    domain.Gateway
	creds gateway.Credentials
}

func (c *fakeConfig) Active() (domain.Gateway, gateway.Credentials, error) {
	return c.gw, c.creds, nil
}

func (c *fakeConfig) Credentials(domain.Gateway) (gateway.Credentials, error) {
	return c.creds, nil
}
