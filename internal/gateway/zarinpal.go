package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"shop-payments/internal/domain"
)

const (
	zarinpalAPIURL        = "https://api.zarinpal.com/pg/v4/payment"
	zarinpalSandboxAPIURL = "https://sandbox.zarinpal.com/pg/v4/payment"
	zarinpalPayURL        = "https://www.zarinpal.com/pg/StartPay/"
	zarinpalSandboxPayURL = "https://sandbox.zarinpal.com/pg/StartPay/"
)

const (
	zarinpalCodeOK              = 100
	zarinpalCodeAlreadyVerified = 101
)

var zarinpalMessages = map[int]string{
	-9:  "خطای اعتبار سنجی",
	-10: "ای پی یا مرچنت كد پذیرنده صحیح نیست",
	-11: "مرچنت کد فعال نیست",
	-12: "تلاش بیش از حد در یک بازه زمانی کوتاه",
	-50: "مبلغ پرداخت شده با مقدار مبلغ در وریفای متفاوت است",
	-51: "پرداخت ناموفق",
	-53: "اتوریتی برای این مرچنت کد نیست",
	-54: "اتوریتی نامعتبر است",
}

func zarinpalMessage(code int) string {
	if msg, ok := zarinpalMessages[code]; ok {
		return msg
	}
	return "خطای ناشناخته"
}

// ZarinPal carries no manual signature: authentication is the merchant id
// over TLS, and amount + authority identify the transaction.
type ZarinPal struct {
	client *http.Client
	apiURL string
	payURL string
}

func NewZarinPal(sandbox bool) *ZarinPal {
	z := &ZarinPal{
		client: newHTTPClient(),
		apiURL: zarinpalAPIURL,
		payURL: zarinpalPayURL,
	}
	if sandbox {
		z.apiURL = zarinpalSandboxAPIURL
		z.payURL = zarinpalSandboxPayURL
	}
	return z
}

func (z *ZarinPal) Name() domain.Gateway {
	return domain.GatewayZarinPal
}

type zarinpalRequestBody struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type zarinpalVerifyBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type zarinpalResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Authority string `json:"authority"`
		RefID     int64  `json:"ref_id"`
		CardPan   string `json:"card_pan"`
	} `json:"data"`
}

func (z *ZarinPal) RequestPayment(ctx context.Context, in RequestInput, creds Credentials) (*RequestResult, error) {
	if creds.MerchantID == "" {
		return nil, &domain.ConfigurationError{Reason: "zarinpal merchant id is empty"}
	}

	body := zarinpalRequestBody{
		MerchantID:  creds.MerchantID,
		Amount:      in.Amount * tomanToRial,
		CallbackURL: in.CallbackURL,
		Description: in.Description,
		Metadata:    map[string]string{"order_id": in.OrderID},
	}

	var resp zarinpalResponse
	if err := z.post(ctx, z.apiURL+"/request.json", body, &resp); err != nil {
		return nil, err
	}

	if resp.Data.Code != zarinpalCodeOK {
		return nil, &domain.GatewayRejectedError{
			Gateway: domain.GatewayZarinPal,
			Code:    resp.Data.Code,
			Message: zarinpalMessage(resp.Data.Code),
		}
	}

	return &RequestResult{
		RedirectURL: z.payURL + resp.Data.Authority,
		Reference:   resp.Data.Authority,
	}, nil
}

func (z *ZarinPal) VerifyPayment(ctx context.Context, amount int64, reference string, creds Credentials) (*VerifyResult, error) {
	if creds.MerchantID == "" {
		return nil, &domain.ConfigurationError{Reason: "zarinpal merchant id is empty"}
	}

	body := zarinpalVerifyBody{
		MerchantID: creds.MerchantID,
		Amount:     amount * tomanToRial,
		Authority:  reference,
	}

	var resp zarinpalResponse
	if err := z.post(ctx, z.apiURL+"/verify.json", body, &resp); err != nil {
		return nil, err
	}

	// 101 means this authority was verified before; the callback was replayed
	// and the original settlement stands.
	if resp.Data.Code != zarinpalCodeOK && resp.Data.Code != zarinpalCodeAlreadyVerified {
		return nil, &domain.VerificationFailedError{
			Gateway: domain.GatewayZarinPal,
			Code:    resp.Data.Code,
			Message: zarinpalMessage(resp.Data.Code),
		}
	}

	return &VerifyResult{
		RefID:   strconv.FormatInt(resp.Data.RefID, 10),
		CardPan: resp.Data.CardPan,
		Code:    resp.Data.Code,
	}, nil
}

func (z *ZarinPal) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal zarinpal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build zarinpal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		return &domain.GatewayUnreachableError{Gateway: domain.GatewayZarinPal, Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayUnreachableError{Gateway: domain.GatewayZarinPal, Err: err}
	}
	return nil
}
