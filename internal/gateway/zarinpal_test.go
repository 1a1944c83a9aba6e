package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-payments/internal/domain"
)

func testZarinPal(serverURL string) *ZarinPal {
	z := NewZarinPal(false)
	z.apiURL = serverURL
	return z
}

func TestZarinPalRequestPayment(t *testing.T) {
	var got zarinpalRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/request.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "authority": "A0000012345"},
		})
	}))
	defer srv.Close()

	z := testZarinPal(srv.URL)
	result, err := z.RequestPayment(context.Background(), RequestInput{
		Amount:      1_250_000, // Toman
		OrderID:     "O1",
		CallbackURL: "https://shop.example/verify",
		Description: "order O1",
	}, Credentials{MerchantID: "m-1", Active: true})
	require.NoError(t, err)

	// Provider is Rial-denominated.
	assert.Equal(t, int64(12_500_000), got.Amount)
	assert.Equal(t, "m-1", got.MerchantID)
	assert.Equal(t, "O1", got.Metadata["order_id"])
	assert.Equal(t, "A0000012345", result.Reference)
	assert.Equal(t, zarinpalPayURL+"A0000012345", result.RedirectURL)
}

func TestZarinPalRequestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": -11},
		})
	}))
	defer srv.Close()

	z := testZarinPal(srv.URL)
	_, err := z.RequestPayment(context.Background(), RequestInput{Amount: 1000, OrderID: "O1"},
		Credentials{MerchantID: "m-1"})

	var rejected *domain.GatewayRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, -11, rejected.Code)
	assert.NotEmpty(t, rejected.Message)
}

func TestZarinPalRequestMissingMerchant(t *testing.T) {
	z := NewZarinPal(false)
	_, err := z.RequestPayment(context.Background(), RequestInput{Amount: 1000}, Credentials{})

	var confErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestZarinPalVerifyPayment(t *testing.T) {
	var got zarinpalVerifyBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 201210000, "card_pan": "603799******6299"},
		})
	}))
	defer srv.Close()

	z := testZarinPal(srv.URL)
	result, err := z.VerifyPayment(context.Background(), 1_250_000, "A0000012345",
		Credentials{MerchantID: "m-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(12_500_000), got.Amount)
	assert.Equal(t, "A0000012345", got.Authority)
	assert.Equal(t, "201210000", result.RefID)
	assert.Equal(t, "603799******6299", result.CardPan)
	assert.Equal(t, 100, result.Code)
}

func TestZarinPalVerifyAlreadyVerifiedIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 101, "ref_id": 201210000},
		})
	}))
	defer srv.Close()

	z := testZarinPal(srv.URL)
	result, err := z.VerifyPayment(context.Background(), 1_250_000, "A0000012345",
		Credentials{MerchantID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, 101, result.Code)
	assert.Equal(t, "201210000", result.RefID)
}

func TestZarinPalVerifyFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": -51},
		})
	}))
	defer srv.Close()

	z := testZarinPal(srv.URL)
	_, err := z.VerifyPayment(context.Background(), 1_250_000, "A0000012345",
		Credentials{MerchantID: "m-1"})

	var failed *domain.VerificationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, -51, failed.Code)
}

func TestZarinPalUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	z := testZarinPal(srv.URL)
	_, err := z.RequestPayment(context.Background(), RequestInput{Amount: 1000, OrderID: "O1"},
		Credentials{MerchantID: "m-1"})

	var unreachable *domain.GatewayUnreachableError
	assert.ErrorAs(t, err, &unreachable)
}
