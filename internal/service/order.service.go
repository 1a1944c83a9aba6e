package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop-payments/internal/audit"
	"shop-payments/internal/domain"
	"shop-payments/internal/repo"
)

type CreateOrderInput struct {
	UserID        uuid.UUID
	ItemsPrice    int64
	ShippingPrice int64
	TaxPrice      int64
	TotalPrice    int64
}

// OrderService owns the order state machine. All status changes, whether
// requested by an admin, the orchestrator or the scheduler, go through
// Transition; nothing else writes order status.
type OrderService interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, []domain.PaymentAttempt, error)
	Transition(ctx context.Context, id uuid.UUID, target domain.OrderStatus, actor, trackingCode string) (*domain.Order, error)
}

type orderService struct {
	orders   repo.OrderRepo
	attempts repo.PaymentRepo
	audit    audit.Sink
	logger   *zap.Logger
	grace    time.Duration
	now      func() time.Time
}

func NewOrderService(
	orders repo.OrderRepo,
	attempts repo.PaymentRepo,
	sink audit.Sink,
	logger *zap.Logger,
	grace time.Duration,
) OrderService {
	return &orderService{
		orders:   orders,
		attempts: attempts,
		audit:    sink,
		logger:   logger,
		grace:    grace,
		now:      time.Now,
	}
}

func (s *orderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.ItemsPrice < 0 || in.ShippingPrice < 0 || in.TaxPrice < 0 || in.TotalPrice < 0 {
		return nil, domain.ErrPriceMismatch
	}
	if in.TotalPrice != in.ItemsPrice+in.ShippingPrice+in.TaxPrice {
		return nil, domain.ErrPriceMismatch
	}

	now := s.now()
	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        in.UserID,
		Status:        domain.OrderPending,
		ItemsPrice:    in.ItemsPrice,
		ShippingPrice: in.ShippingPrice,
		TaxPrice:      in.TaxPrice,
		TotalPrice:    in.TotalPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("total_price", order.TotalPrice))
	return order, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, []domain.PaymentAttempt, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, domain.ErrOrderNotFound
	}
	attempts, err := s.attempts.ListByOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, attempts, nil
}

func (s *orderService) Transition(ctx context.Context, id uuid.UUID, target domain.OrderStatus, actor, trackingCode string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, &domain.IllegalTransitionError{From: from, To: target}
	}

	now := s.now()
	order.Status = target
	switch target {
	case domain.OrderShipped:
		if trackingCode == "" {
			return nil, domain.ErrTrackingCodeRequired
		}
		autoCompleteAt := now.Add(s.grace)
		order.TrackingCode = &trackingCode
		order.ShippedAt = &now
		order.AutoCompleteAt = &autoCompleteAt
	case domain.OrderDelivered:
		order.DeliveredAt = &now
		order.AutoCompleteAt = nil
	}

	ok, err := s.orders.TransitionStatus(ctx, order, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against another writer; the client's view was stale.
		return nil, &domain.IllegalTransitionError{From: from, To: target}
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   "order.status_changed",
		Entity:   "order",
		EntityID: order.ID.String(),
		Actor:    actor,
		Details: map[string]string{
			"from": string(from),
			"to":   string(target),
		},
		At: now,
	})

	s.logger.Info("order transitioned",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor))
	return order, nil
}
