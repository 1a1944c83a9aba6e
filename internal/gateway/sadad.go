package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shop-payments/internal/domain"
	"shop-payments/internal/signature"
)

const (
	sadadAPIURL      = "https://sadad.shaparak.ir/vpg/api/v0"
	sadadPurchaseURL = "https://sadad.shaparak.ir/VPG/Purchase"
)

const (
	sadadCodeOK              = 0
	sadadCodeAlreadyVerified = 2
)

var sadadMessages = map[int]string{
	3:    "پذیرنده کارت فعال نیست",
	23:   "پذیرنده کارت نامعتبر است",
	58:   "انجام تراکنش مربوطه توسط پایانه انجام دهنده مجاز نمی باشد",
	61:   "مبلغ تراکنش از حد مجاز بالاتر است",
	1011: "درخواست تکراری است",
	1012: "اطلاعات پذیرنده صحیح نیست",
	1015: "پاسخ خطا از سمت سامانه پرداخت",
	1017: "کاربر از انجام تراکنش منصرف شده است",
	1018: "تاریخ ارسال تراکنش نامعتبر است",
	1019: "امضای تراکنش نامعتبر است",
}

func sadadMessage(code int) string {
	if msg, ok := sadadMessages[code]; ok {
		return msg
	}
	return "خطای ناشناخته از درگاه سداد"
}

// Sadad requires SignData on every call: HMAC over
// terminalId;orderId;amountInRials for the purchase request, and over the
// token alone for verify, both keyed by the terminal key.
type Sadad struct {
	client *http.Client
	apiURL string
	payURL string
	now    func() time.Time
}

func NewSadad() *Sadad {
	return &Sadad{
		client: newHTTPClient(),
		apiURL: sadadAPIURL,
		payURL: sadadPurchaseURL,
		now:    time.Now,
	}
}

func (s *Sadad) Name() domain.Gateway {
	return domain.GatewaySadad
}

type sadadRequestBody struct {
	TerminalID     string `json:"TerminalId"`
	MerchantID     string `json:"MerchantId"`
	Amount         int64  `json:"Amount"`
	SignData       string `json:"SignData"`
	ReturnURL      string `json:"ReturnUrl"`
	OrderID        string `json:"OrderId"`
	LocalDateTime  string `json:"LocalDateTime"`
	AdditionalData string `json:"AdditionalData"`
}

type sadadRequestResponse struct {
	ResCode     int    `json:"ResCode"`
	Token       string `json:"Token"`
	Description string `json:"Description"`
}

type sadadVerifyBody struct {
	Token    string `json:"Token"`
	SignData string `json:"SignData"`
}

type sadadVerifyResponse struct {
	ResCode       int    `json:"ResCode"`
	Description   string `json:"Description"`
	Amount        int64  `json:"Amount"`
	SystemTraceNo string `json:"SystemTraceNo"`
	RetrivalRefNo string `json:"RetrivalRefNo"`
	OrderID       string `json:"OrderId"`
}

func (s *Sadad) RequestPayment(ctx context.Context, in RequestInput, creds Credentials) (*RequestResult, error) {
	if creds.TerminalID == "" || creds.MerchantID == "" {
		return nil, &domain.ConfigurationError{Reason: "sadad terminal or merchant id is empty"}
	}

	amountRials := in.Amount * tomanToRial
	sign, err := signature.Sign(creds.SecretKey,
		creds.TerminalID, in.OrderID, strconv.FormatInt(amountRials, 10))
	if err != nil {
		return nil, err
	}

	body := sadadRequestBody{
		TerminalID:     creds.TerminalID,
		MerchantID:     creds.MerchantID,
		Amount:         amountRials,
		SignData:       sign,
		ReturnURL:      in.CallbackURL,
		OrderID:        in.OrderID,
		LocalDateTime:  s.now().Format("01/02/2006 03:04:05 PM"),
		AdditionalData: in.Description,
	}

	var resp sadadRequestResponse
	if err := s.post(ctx, s.apiURL+"/Request/PaymentRequest", body, &resp); err != nil {
		return nil, err
	}

	if resp.ResCode != sadadCodeOK {
		return nil, &domain.GatewayRejectedError{
			Gateway: domain.GatewaySadad,
			Code:    resp.ResCode,
			Message: sadadMessage(resp.ResCode),
		}
	}

	return &RequestResult{
		RedirectURL: s.payURL + "?Token=" + resp.Token,
		Reference:   resp.Token,
	}, nil
}

func (s *Sadad) VerifyPayment(ctx context.Context, amount int64, reference string, creds Credentials) (*VerifyResult, error) {
	// Signed with the stored token, never anything supplied by the caller.
	sign, err := signature.Sign(creds.SecretKey, reference)
	if err != nil {
		return nil, err
	}

	body := sadadVerifyBody{Token: reference, SignData: sign}

	var resp sadadVerifyResponse
	if err := s.post(ctx, s.apiURL+"/Advice/Verify", body, &resp); err != nil {
		return nil, err
	}

	if resp.ResCode != sadadCodeOK && resp.ResCode != sadadCodeAlreadyVerified {
		return nil, &domain.VerificationFailedError{
			Gateway: domain.GatewaySadad,
			Code:    resp.ResCode,
			Message: sadadMessage(resp.ResCode),
		}
	}

	return &VerifyResult{
		RefID:   resp.RetrivalRefNo,
		CardPan: "",
		Code:    resp.ResCode,
	}, nil
}

func (s *Sadad) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal sadad request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sadad request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.GatewayUnreachableError{Gateway: domain.GatewaySadad, Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayUnreachableError{Gateway: domain.GatewaySadad, Err: err}
	}
	return nil
}
