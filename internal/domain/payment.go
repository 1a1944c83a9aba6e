package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gateway identifies one of the supported payment providers. The set is
// closed; the active provider is picked by configuration, never by the
// paying user.
type Gateway string

const (
	GatewayZarinPal Gateway = "zarinpal"
	GatewaySadad    Gateway = "sadad"
)

func (g Gateway) Valid() bool {
	return g == GatewayZarinPal || g == GatewaySadad
}

type AttemptOutcome string

const (
	AttemptInitiated AttemptOutcome = "INITIATED"
	AttemptVerified  AttemptOutcome = "VERIFIED"
	AttemptFailed    AttemptOutcome = "FAILED"
)

// PaymentAttempt is one round trip through a provider. Reference is the
// provider-issued authority/token and doubles as the idempotency key for
// verification. At most one attempt per order ever reaches VERIFIED.
type PaymentAttempt struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Gateway       Gateway
	Reference     string
	Amount        int64
	Outcome       AttemptOutcome
	ProviderRefID *string
	CardPan       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
