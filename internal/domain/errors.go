package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrUnknownTransaction   = errors.New("unknown transaction reference")
	ErrInvalidOrderState    = errors.New("order is not in a payable state")
	ErrGatewayNotConfigured = errors.New("active payment gateway is not configured")
	ErrTrackingCodeRequired = errors.New("tracking code is required to ship an order")
	ErrPriceMismatch        = errors.New("total price does not equal the sum of its components")
)

// ConfigurationError is operator-facing: credentials are missing or unusable
// for the request that needed them.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// IllegalTransitionError rejects an edge absent from the order lifecycle.
type IllegalTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
}

// GatewayRejectedError carries the provider's decline code on payment request.
type GatewayRejectedError struct {
	Gateway Gateway
	Code    int
	Message string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("%s rejected payment request (code %d): %s", e.Gateway, e.Code, e.Message)
}

// VerificationFailedError carries the provider's decline code on verify.
type VerificationFailedError struct {
	Gateway Gateway
	Code    int
	Message string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("%s verification failed (code %d): %s", e.Gateway, e.Code, e.Message)
}

// GatewayUnreachableError wraps a network or timeout failure. Recoverable:
// the caller may initiate a fresh attempt.
type GatewayUnreachableError struct {
	Gateway Gateway
	Err     error
}

func (e *GatewayUnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Gateway, e.Err)
}

func (e *GatewayUnreachableError) Unwrap() error {
	return e.Err
}
