package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"shop-payments/internal/domain"
)

// Delimiter between signed fields. Providers that pre-join their own fields
// may pass a single already-delimited string.
const delimiter = ";"

// Sign computes a base64-encoded HMAC-SHA256 over the fields joined with ";".
// Deterministic: identical inputs always produce identical output, so a
// receiver detects tampering by recomputing and comparing.
func Sign(secretKey string, fields ...string) (string, error) {
	if secretKey == "" {
		return "", &domain.ConfigurationError{Reason: "signing key is empty"}
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strings.Join(fields, delimiter)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time.
func Verify(secretKey, sig string, fields ...string) (bool, error) {
	expected, err := Sign(secretKey, fields...)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(sig)), nil
}
