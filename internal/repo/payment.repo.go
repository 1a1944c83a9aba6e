package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shop-payments/internal/domain"
)

type PaymentRepo interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	FindByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentAttempt, error)
	// ApplyVerified marks the attempt VERIFIED and the order paid/PROCESSING
	// in one transaction, guarded on the attempt still being INITIATED and
	// the order still PENDING and unpaid. Returns false when a concurrent
	// verify already applied this payment.
	ApplyVerified(ctx context.Context, reference, providerRefID, cardPan string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, reference string) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const attemptColumns = `id, order_id, gateway, reference, amount, outcome, provider_ref_id, card_pan, created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.Gateway,
		&a.Reference,
		&a.Amount,
		&a.Outcome,
		&a.ProviderRefID,
		&a.CardPan,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *paymentRepo) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (id, order_id, gateway, reference, amount, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.ID, attempt.OrderID, attempt.Gateway, attempt.Reference,
		attempt.Amount, attempt.Outcome, attempt.CreatedAt, attempt.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE reference = $1`, reference)
	attempt, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *paymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

func (r *paymentRepo) ApplyVerified(ctx context.Context, reference, providerRefID, cardPan string, paidAt time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// The outcome guard is the serialization point: of two racing verifies,
	// only one sees INITIATED here.
	var orderID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		UPDATE payment_attempts
		SET outcome = $2,
		    provider_ref_id = $3,
		    card_pan = NULLIF($4, ''),
		    updated_at = now()
		WHERE reference = $1 AND outcome = $5
		RETURNING order_id`,
		reference, domain.AttemptVerified, providerRefID, cardPan, domain.AttemptInitiated,
	).Scan(&orderID)
	if err == sql.ErrNoRows {
		return false, nil // someone else won the race
	}
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    is_paid = TRUE,
		    paid_at = $3,
		    updated_at = now()
		WHERE id = $1 AND status = $4 AND is_paid = FALSE`,
		orderID, domain.OrderProcessing, paidAt, domain.OrderPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		// Attempt was INITIATED but the order is no longer payable; roll the
		// whole apply back rather than leave a verified attempt on an unpaid
		// order.
		return false, fmt.Errorf("order %s not payable while applying verification", orderID)
	}

	return true, tx.Commit()
}

func (r *paymentRepo) MarkFailed(ctx context.Context, reference string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_attempts
		SET outcome = $2, updated_at = now()
		WHERE reference = $1 AND outcome = $3`,
		reference, domain.AttemptFailed, domain.AttemptInitiated,
	)
	return err
}
