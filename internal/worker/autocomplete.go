package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shop-payments/internal/audit"
	"shop-payments/internal/domain"
	"shop-payments/internal/repo"
)

const batchSize = 100

// AutoCompletion promotes orders stuck in SHIPPED past their grace period to
// DELIVERED. Safe to run on multiple replicas: the promotion is a conditional
// update, and a no-op update means another replica handled the order.
type AutoCompletion struct {
	orders   repo.OrderRepo
	audit    audit.Sink
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewAutoCompletion(
	orders repo.OrderRepo,
	sink audit.Sink,
	logger *zap.Logger,
	interval time.Duration,
) *AutoCompletion {
	return &AutoCompletion{
		orders:   orders,
		audit:    sink,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

func (w *AutoCompletion) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("auto-completion worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("auto-completion worker stopped")
			return
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				// Fire-and-forget: the next tick retries the same query.
				w.logger.Error("auto-completion tick failed", zap.Error(err))
			}
		}
	}
}

// Tick runs a single scan-and-promote pass. Exported so tests can drive the
// worker without wall-clock timers.
func (w *AutoCompletion) Tick(ctx context.Context) error {
	now := w.now()
	orders, err := w.orders.FindAutoCompletable(ctx, now, batchSize)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	w.logger.Info("promoting shipped orders", zap.Int("count", len(orders)))

	for _, order := range orders {
		if order.AutoCompleteAt == nil {
			continue
		}
		ok, err := w.orders.PromoteDelivered(ctx, order.ID, *order.AutoCompleteAt, now)
		if err != nil {
			// One bad record must not block the batch.
			w.logger.Error("promote order failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
			continue
		}
		if !ok {
			// Another replica got there first, or an admin moved the order.
			continue
		}

		w.audit.Record(ctx, audit.Entry{
			Action:   "order.status_changed",
			Entity:   "order",
			EntityID: order.ID.String(),
			Actor:    audit.ActorSystem,
			Details: map[string]string{
				"from": string(domain.OrderShipped),
				"to":   string(domain.OrderDelivered),
			},
			At: now,
		})
		w.logger.Info("order auto-completed", zap.String("order_id", order.ID.String()))
	}
	return nil
}
