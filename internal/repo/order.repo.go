package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"shop-payments/internal/domain"
)

type OrderRepo interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// TransitionStatus writes the order's status and effect columns guarded
	// by the expected previous status. Returns false when another writer got
	// there first.
	TransitionStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error)
	FindAutoCompletable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	// PromoteDelivered is the scheduler's conditional update: only fires if
	// the order is still SHIPPED and its auto-complete timer matches what the
	// scheduler read. Returns false when already handled by another replica.
	PromoteDelivered(ctx context.Context, id uuid.UUID, expectedAutoCompleteAt, deliveredAt time.Time) (bool, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, user_id, status, items_price, shipping_price, tax_price, total_price,
	is_paid, tracking_code, paid_at, shipped_at, delivered_at, auto_complete_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.ItemsPrice,
		&o.ShippingPrice,
		&o.TaxPrice,
		&o.TotalPrice,
		&o.IsPaid,
		&o.TrackingCode,
		&o.PaidAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.AutoCompleteAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, items_price, shipping_price, tax_price, total_price, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.UserID, order.Status,
		order.ItemsPrice, order.ShippingPrice, order.TaxPrice, order.TotalPrice,
		order.IsPaid, order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) TransitionStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    tracking_code = $3,
		    shipped_at = $4,
		    delivered_at = $5,
		    auto_complete_at = $6,
		    updated_at = now()
		WHERE id = $1 AND status = $7`,
		order.ID, order.Status,
		order.TrackingCode, order.ShippedAt, order.DeliveredAt, order.AutoCompleteAt,
		from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) FindAutoCompletable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND auto_complete_at IS NOT NULL AND auto_complete_at <= $2
		ORDER BY auto_complete_at
		LIMIT $3`,
		domain.OrderShipped, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (r *orderRepo) PromoteDelivered(ctx context.Context, id uuid.UUID, expectedAutoCompleteAt, deliveredAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    delivered_at = $3,
		    auto_complete_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = $4 AND auto_complete_at = $5`,
		id, domain.OrderDelivered, deliveredAt, domain.OrderShipped, expectedAutoCompleteAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
