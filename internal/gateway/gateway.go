package gateway

import (
	"context"
	"net/http"
	"time"

	"shop-payments/internal/domain"
)

// Providers denominate in Rial; order amounts are Toman.
const tomanToRial = 10

const requestTimeout = 15 * time.Second

// Credentials is the per-provider key material, threaded in per call rather
// than read from a global. Secrets are never logged in plaintext.
type Credentials struct {
	MerchantID string
	TerminalID string
	SecretKey  string
	Sandbox    bool
	Active     bool
}

type RequestInput struct {
	Amount      int64 // Toman
	OrderID     string
	CallbackURL string
	Description string
}

type RequestResult struct {
	RedirectURL string
	Reference   string // provider authority/token, the idempotency key
}

type VerifyResult struct {
	RefID   string // bank settlement reference (RRN/trace)
	CardPan string
	Code    int // raw provider code
}

// Adapter is the port every payment provider implements. VerifyPayment must
// treat the provider's "already verified" answer as success and hand back the
// existing RefID, because the return callback can legitimately be replayed.
type Adapter interface {
	Name() domain.Gateway
	RequestPayment(ctx context.Context, in RequestInput, creds Credentials) (*RequestResult, error)
	VerifyPayment(ctx context.Context, amount int64, reference string, creds Credentials) (*VerifyResult, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
