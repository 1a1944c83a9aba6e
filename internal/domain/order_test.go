package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	all := []OrderStatus{
		OrderPending, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderReturned,
	}
	allowed := map[OrderStatus][]OrderStatus{
		OrderPending:    {OrderProcessing, OrderCancelled},
		OrderProcessing: {OrderShipped, OrderCancelled},
		OrderShipped:    {OrderDelivered, OrderReturned},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, legal := range allowed[from] {
				if legal == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestNoReentry(t *testing.T) {
	// Delivered is final: nothing leaves it, regardless of actor.
	for _, to := range []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderCancelled, OrderReturned} {
		assert.False(t, OrderDelivered.CanTransitionTo(to))
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, OrderPending.IsTerminal())
	assert.False(t, OrderProcessing.IsTerminal())
	assert.False(t, OrderShipped.IsTerminal())
	assert.True(t, OrderDelivered.IsTerminal())
	assert.True(t, OrderCancelled.IsTerminal())
	assert.True(t, OrderReturned.IsTerminal())
}
