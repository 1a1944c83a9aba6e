package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderReturned   OrderStatus = "RETURNED"
)

// transitions is the full adjacency table of the order lifecycle. Anything
// not listed here is rejected, no matter who asks.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderReturned},
}

// CanTransitionTo reports whether the edge s -> target exists in the lifecycle.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderReturned:
		return true
	}
	return false
}

// Order amounts are integer Toman. TotalPrice must equal the sum of the other
// three at creation and is frozen once IsPaid flips to true.
type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Status         OrderStatus
	ItemsPrice     int64
	ShippingPrice  int64
	TaxPrice       int64
	TotalPrice     int64
	IsPaid         bool
	TrackingCode   *string
	PaidAt         *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	AutoCompleteAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
