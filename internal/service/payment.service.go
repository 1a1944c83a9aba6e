package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop-payments/internal/audit"
	"shop-payments/internal/domain"
	"shop-payments/internal/gateway"
	"shop-payments/internal/repo"
)

// ConfigProvider is the seam between external configuration and the
// orchestrator: it yields the active gateway and per-gateway credentials at
// call time.
type ConfigProvider interface {
	Active() (domain.Gateway, gateway.Credentials, error)
	Credentials(gw domain.Gateway) (gateway.Credentials, error)
}

type VerificationResult struct {
	OrderID         uuid.UUID
	Reference       string
	RefID           string
	CardPan         string
	AlreadyVerified bool
}

// PaymentService drives the two-phase payment protocol and is the only
// caller of the gateway adapters.
type PaymentService interface {
	Initiate(ctx context.Context, orderID uuid.UUID) (string, error)
	Verify(ctx context.Context, reference string) (*VerificationResult, error)
}

type paymentService struct {
	orders      repo.OrderRepo
	attempts    repo.PaymentRepo
	adapters    map[domain.Gateway]gateway.Adapter
	config      ConfigProvider
	audit       audit.Sink
	logger      *zap.Logger
	callbackURL string
	now         func() time.Time
}

func NewPaymentService(
	orders repo.OrderRepo,
	attempts repo.PaymentRepo,
	adapters map[domain.Gateway]gateway.Adapter,
	config ConfigProvider,
	sink audit.Sink,
	logger *zap.Logger,
	callbackURL string,
) PaymentService {
	return &paymentService{
		orders:      orders,
		attempts:    attempts,
		adapters:    adapters,
		config:      config,
		audit:       sink,
		logger:      logger,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

func (s *paymentService) Initiate(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderPending || order.IsPaid {
		return "", domain.ErrInvalidOrderState
	}

	gw, creds, err := s.config.Active()
	if err != nil {
		return "", err
	}
	if !creds.Active {
		return "", domain.ErrGatewayNotConfigured
	}
	adapter, ok := s.adapters[gw]
	if !ok {
		return "", domain.ErrGatewayNotConfigured
	}

	result, err := adapter.RequestPayment(ctx, gateway.RequestInput{
		Amount:      order.TotalPrice,
		OrderID:     order.ID.String(),
		CallbackURL: s.callbackURL,
		Description: fmt.Sprintf("order %s", order.ID),
	}, creds)
	if err != nil {
		return "", err
	}

	now := s.now()
	attempt := &domain.PaymentAttempt{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Gateway:   gw,
		Reference: result.Reference,
		Amount:    order.TotalPrice,
		Outcome:   domain.AttemptInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return "", err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   "payment.initiated",
		Entity:   "order",
		EntityID: order.ID.String(),
		Actor:    order.UserID.String(),
		Details: map[string]string{
			"gateway":   string(gw),
			"reference": result.Reference,
		},
		At: now,
	})

	s.logger.Info("payment initiated",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway", string(gw)),
		zap.String("reference", result.Reference))
	return result.RedirectURL, nil
}

func (s *paymentService) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	attempt, err := s.attempts.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.ErrUnknownTransaction
	}

	switch attempt.Outcome {
	case domain.AttemptVerified:
		// Idempotent replay: hand back the stored result, touch nothing.
		return storedResult(attempt), nil
	case domain.AttemptFailed:
		return nil, &domain.VerificationFailedError{
			Gateway: attempt.Gateway,
			Message: "payment attempt already failed, initiate a new one",
		}
	}

	creds, err := s.config.Credentials(attempt.Gateway)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.adapters[attempt.Gateway]
	if !ok {
		return nil, domain.ErrGatewayNotConfigured
	}

	// Amount comes from the stored attempt, never from the caller.
	result, err := adapter.VerifyPayment(ctx, attempt.Amount, attempt.Reference, creds)
	if err != nil {
		var vf *domain.VerificationFailedError
		var rej *domain.GatewayRejectedError
		if errors.As(err, &vf) || errors.As(err, &rej) {
			// Provider declined: close the attempt, order stays PENDING.
			if markErr := s.attempts.MarkFailed(ctx, reference); markErr != nil {
				s.logger.Error("mark attempt failed", zap.String("reference", reference), zap.Error(markErr))
			}
			s.audit.Record(ctx, audit.Entry{
				Action:   "payment.failed",
				Entity:   "order",
				EntityID: attempt.OrderID.String(),
				Actor:    audit.ActorSystem,
				Details:  map[string]string{"reference": reference, "error": err.Error()},
				At:       s.now(),
			})
		}
		// GatewayUnreachable passes through without marking the attempt: the
		// caller may retry this verify.
		return nil, err
	}

	now := s.now()
	applied, err := s.attempts.ApplyVerified(ctx, reference, result.RefID, result.CardPan, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent verify applied the payment first; serve its result.
		fresh, err := s.attempts.FindByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		if fresh == nil || fresh.Outcome != domain.AttemptVerified {
			return nil, domain.ErrUnknownTransaction
		}
		return storedResult(fresh), nil
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   "payment.verified",
		Entity:   "order",
		EntityID: attempt.OrderID.String(),
		Actor:    audit.ActorSystem,
		Details: map[string]string{
			"gateway":   string(attempt.Gateway),
			"reference": reference,
			"ref_id":    result.RefID,
		},
		At: now,
	})
	s.audit.Record(ctx, audit.Entry{
		Action:   "order.status_changed",
		Entity:   "order",
		EntityID: attempt.OrderID.String(),
		Actor:    audit.ActorSystem,
		Details: map[string]string{
			"from": string(domain.OrderPending),
			"to":   string(domain.OrderProcessing),
		},
		At: now,
	})

	s.logger.Info("payment verified",
		zap.String("order_id", attempt.OrderID.String()),
		zap.String("reference", reference),
		zap.String("ref_id", result.RefID))

	return &VerificationResult{
		OrderID:   attempt.OrderID,
		Reference: reference,
		RefID:     result.RefID,
		CardPan:   result.CardPan,
	}, nil
}

func storedResult(attempt *domain.PaymentAttempt) *VerificationResult {
	res := &VerificationResult{
		OrderID:         attempt.OrderID,
		Reference:       attempt.Reference,
		AlreadyVerified: true,
	}
	if attempt.ProviderRefID != nil {
		res.RefID = *attempt.ProviderRefID
	}
	if attempt.CardPan != nil {
		res.CardPan = *attempt.CardPan
	}
	return res
}
