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

type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type createOrderRequest struct {
	UserID        uuid.UUID `json:"user_id" binding:"required"`
	ItemsPrice    int64     `json:"items_price"`
	ShippingPrice int64     `json:"shipping_price"`
	TaxPrice      int64     `json:"tax_price"`
	TotalPrice    int64     `json:"total_price"`
}

type setStatusRequest struct {
	Status       domain.OrderStatus `json:"status" binding:"required"`
	TrackingCode string             `json:"tracking_code"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	order, err := h.orders.Create(c.Request.Context(), service.CreateOrderInput{
		UserID:        req.UserID,
		ItemsPrice:    req.ItemsPrice,
		ShippingPrice: req.ShippingPrice,
		TaxPrice:      req.TaxPrice,
		TotalPrice:    req.TotalPrice,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPriceMismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order_id": order.ID, "status": order.Status})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, attempts, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.logger.Error("get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "payment_attempts": attempts})
}

// SetStatus is the admin entry into the state machine. The authenticated
// admin principal arrives via the X-Actor-ID header from the auth layer.
func (h *OrderHandler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	actor := c.GetHeader("X-Actor-ID")
	if actor == "" {
		actor = "admin"
	}

	order, err := h.orders.Transition(c.Request.Context(), id, req.Status, actor, req.TrackingCode)
	if err != nil {
		var illegal *domain.IllegalTransitionError
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, domain.ErrTrackingCodeRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &illegal):
			c.JSON(http.StatusConflict, gin.H{"error": illegal.Error()})
		default:
			h.logger.Error("set order status", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "status": order.Status})
}
