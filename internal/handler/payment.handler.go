package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop-payments/internal/domain"
	"shop-payments/internal/service"
)

type PaymentHandler struct {
	payments service.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Initiate starts a payment for a pending order and returns the provider
// redirect URL the storefront must send the user to.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	redirectURL, err := h.payments.Initiate(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirect_url": redirectURL})
}

// Verify is the gateway return URL. ZarinPal comes back with ?Authority=,
// Sadad with ?Token=; both are the stored attempt reference.
func (h *PaymentHandler) Verify(c *gin.Context) {
	reference := c.Query("Authority")
	if reference == "" {
		reference = c.Query("Token")
	}
	if reference == "" {
		reference = c.Query("reference")
	}
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing payment reference"})
		return
	}

	result, err := h.payments.Verify(c.Request.Context(), reference)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "payment completed"
	if result.AlreadyVerified {
		// Distinguish the replayed callback so the user is never told to pay
		// again after a successful but doubly-reported verification.
		message = "payment was already completed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          message,
		"order_id":         result.OrderID,
		"ref_id":           result.RefID,
		"card_pan":         result.CardPan,
		"already_verified": result.AlreadyVerified,
	})
}

func (h *PaymentHandler) respondError(c *gin.Context, err error) {
	var (
		confErr *domain.ConfigurationError
		rejErr  *domain.GatewayRejectedError
		verErr  *domain.VerificationFailedError
		netErr  *domain.GatewayUnreachableError
	)

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, domain.ErrUnknownTransaction):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
	case errors.Is(err, domain.ErrInvalidOrderState):
		c.JSON(http.StatusConflict, gin.H{"error": "order is not payable"})
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		h.logger.Error("gateway not configured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway unavailable"})
	case errors.As(err, &confErr):
		h.logger.Error("gateway misconfigured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway unavailable"})
	case errors.As(err, &rejErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": "payment not completed",
			"code":  rejErr.Code, "message": rejErr.Message,
		})
	case errors.As(err, &verErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": "payment not completed",
			"code":  verErr.Code, "message": verErr.Message,
		})
	case errors.As(err, &netErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unreachable, try again"})
	default:
		h.logger.Error("payment handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
